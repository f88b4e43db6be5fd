package scraper

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/carhunt/go-rank-dealers/config"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		wantLabel  string
	}{
		{
			name:      "deadline exceeded",
			err:       context.DeadlineExceeded,
			wantLabel: "timeout",
		},
		{
			name:      "network op error",
			err:       &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			wantLabel: "connection",
		},
		{
			name:       "forbidden",
			err:        errors.New("forbidden"),
			statusCode: 403,
			wantLabel:  "forbidden",
		},
		{
			name:       "not found",
			err:        errors.New("not found"),
			statusCode: 404,
			wantLabel:  "not_found",
		},
		{
			name:       "gone is treated as not found",
			err:        errors.New("gone"),
			statusCode: 410,
			wantLabel:  "not_found",
		},
		{
			name:       "rate limited",
			err:        errors.New("too many requests"),
			statusCode: 429,
			wantLabel:  "rate_limited",
		},
		{
			name:       "service unavailable is a bot wall",
			err:        errors.New("service unavailable"),
			statusCode: 503,
			wantLabel:  "blocked",
		},
		{
			name:       "status without error still classifies",
			statusCode: 404,
			wantLabel:  "not_found",
		},
		{
			name:      "unrecognized error passes through",
			err:       errors.New("something odd"),
			wantLabel: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError(tt.err, tt.statusCode)
			if got := errorTypeLabel(classified); got != tt.wantLabel {
				t.Errorf("label = %q, want %q (classified %v)", got, tt.wantLabel, classified)
			}
		})
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if got := classifyError(nil, 0); got != nil {
		t.Errorf("classifyError(nil, 0) = %v, want nil", got)
	}
}

func TestErrorTypesUnwrap(t *testing.T) {
	base := errors.New("underlying")
	wrapped := classifyError(base, 403)
	if !errors.Is(wrapped, base) {
		t.Errorf("classified error must unwrap to the original")
	}
}

func TestRetryBackoff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 500 * time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Second
	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second}, // capped
		{6, 5 * time.Second},
		{0, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := rm.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryScheduleHonorsMaxRetries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2
	// Timers must not fire during the test.
	cfg.RetryBackoff = time.Hour
	cfg.RetryBackoffMax = time.Hour

	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())
	t.Cleanup(rm.Stop)

	const u = "http://example.test/listing"
	if !rm.Schedule(u) {
		t.Fatalf("first retry refused")
	}
	if !rm.Schedule(u) {
		t.Fatalf("second retry refused")
	}
	if rm.Schedule(u) {
		t.Fatalf("third retry accepted past the limit")
	}
	if got := rm.TotalRetries(); got != 2 {
		t.Errorf("TotalRetries = %d, want 2", got)
	}
}

func TestRetryScheduleDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 0
	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())

	if rm.Schedule("http://example.test/listing") {
		t.Fatalf("retries scheduled with MaxRetries = 0")
	}
	if rm.Schedule("") {
		t.Fatalf("retry scheduled for empty URL")
	}
}

func TestRetryScheduleStopsAfterStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 5
	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())

	rm.Stop()
	if rm.Schedule("http://example.test/listing") {
		t.Fatalf("retry scheduled after Stop")
	}
}

func TestRetryScheduleStopsOnCanceledContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 5
	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())
	t.Cleanup(rm.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rm.SetContext(ctx)

	if rm.Schedule("http://example.test/listing") {
		t.Fatalf("retry scheduled on canceled context")
	}
}

func TestPageFromResponse(t *testing.T) {
	html := `<html><head><title> 2024 Honda Civic Sport | Example Motors </title>
<script>var tracking = "ignore me";</script></head>
<body>
<h1>2024 Honda Civic Sport</h1>
<div><span>VIN: 2HGFE2F52RH512345</span></div>
<style>.hidden { display: none }</style>
<p>Price: $30,995</p>
</body></html>`

	u, err := url.Parse("http://example.test/listing/123")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	resp := &colly.Response{
		Body:    []byte(html),
		Request: &colly.Request{URL: u},
	}

	page := pageFromResponse(resp)

	if page.URL != "http://example.test/listing/123" {
		t.Errorf("URL = %q", page.URL)
	}
	if page.Title != "2024 Honda Civic Sport | Example Motors" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.HTML != html {
		t.Errorf("HTML must carry the raw markup")
	}

	for _, want := range []string{"2024 Honda Civic Sport", "VIN: 2HGFE2F52RH512345", "Price: $30,995"} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("Text missing %q:\n%s", want, page.Text)
		}
	}
	for _, banned := range []string{"ignore me", "display: none"} {
		if strings.Contains(page.Text, banned) {
			t.Errorf("Text must not contain script or style content %q", banned)
		}
	}

	// Leaf blocks land on separate lines so line-scoped patterns work.
	if !strings.Contains(page.Text, "VIN: 2HGFE2F52RH512345\n") {
		t.Errorf("leaf text not newline-terminated:\n%s", page.Text)
	}
}

func TestPageFromResponseUnparsableBody(t *testing.T) {
	u, _ := url.Parse("http://example.test/raw")
	resp := &colly.Response{
		Body:    []byte("plain text, no markup"),
		Request: &colly.Request{URL: u},
	}

	page := pageFromResponse(resp)
	if !strings.Contains(page.Text, "plain text, no markup") {
		t.Errorf("Text = %q", page.Text)
	}
}
