package dealerinfo

import (
	"context"
	"regexp"
	"testing"

	"github.com/jarcoal/httpmock"
)

const searchPage = `<html><body>
<div>Westchester Honda</div>
<div>55 Bank St, White Plains, NY 10601</div>
<div>4.6 stars</div>
<div>(1,234) Google reviews</div>
</body></html>`

const directionsPage = `<html><body>
<div>via I-287</div>
<div>12.5 mi (25 min)</div>
</body></html>`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient("White Plains, NY 10601", WithSearchBase("https://search.test"))
	httpmock.ActivateNonDefault(c.HTTPClient().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestLookupFromMapsSearch(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/search/`),
		httpmock.NewStringResponder(200, searchPage))
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/dir/`),
		httpmock.NewStringResponder(200, directionsPage))

	info, err := c.Lookup(context.Background(), "Westchester Honda")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if info.Address != "55 Bank St, White Plains, NY 10601" {
		t.Errorf("Address = %q", info.Address)
	}
	if info.Rating == nil || *info.Rating != 4.6 {
		t.Errorf("Rating = %v", info.Rating)
	}
	if info.ReviewCount == nil || *info.ReviewCount != 1234 {
		t.Errorf("ReviewCount = %v", info.ReviewCount)
	}
	if info.DistanceMiles == nil || *info.DistanceMiles != 12.5 {
		t.Errorf("DistanceMiles = %v", info.DistanceMiles)
	}
	if info.DrivingTimeMinutes == nil || *info.DrivingTimeMinutes != 25 {
		t.Errorf("DrivingTimeMinutes = %v", info.DrivingTimeMinutes)
	}
}

func TestLookupKnowledgePanelFallback(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/search/`),
		httpmock.NewStringResponder(200, `<html><body><div>No results</div></body></html>`))
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/search\?q=`),
		httpmock.NewStringResponder(200, `<html><body><div>4.2 stars</div><div>(87) reviews</div></body></html>`))

	info, err := c.Lookup(context.Background(), "Obscure Motors")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.Address != "" {
		t.Errorf("Address = %q, want empty", info.Address)
	}
	if info.Rating == nil || *info.Rating != 4.2 {
		t.Errorf("Rating = %v", info.Rating)
	}
	if info.ReviewCount == nil || *info.ReviewCount != 87 {
		t.Errorf("ReviewCount = %v", info.ReviewCount)
	}
	// No address means no directions fetch.
	if info.DistanceMiles != nil || info.DrivingTimeMinutes != nil {
		t.Errorf("distance should stay unknown without an address")
	}
}

func TestLookupNoDataIsAnError(t *testing.T) {
	c := newTestClient(t)
	empty := httpmock.NewStringResponder(200, `<html><body><div>nothing here</div></body></html>`)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/search/`), empty)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/search\?q=`), empty)

	if _, err := c.Lookup(context.Background(), "Ghost Dealer"); err == nil {
		t.Fatalf("expected error for dealer with no profile data")
	}
}

func TestLookupMemoizesWithinRun(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/search/`),
		httpmock.NewStringResponder(200, searchPage))
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/dir/`),
		httpmock.NewStringResponder(200, directionsPage))

	if _, err := c.Lookup(context.Background(), "Westchester Honda"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	calls := httpmock.GetTotalCallCount()

	if _, err := c.Lookup(context.Background(), "Westchester Honda"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != calls {
		t.Errorf("second lookup issued %d extra requests", got-calls)
	}
}

func TestLookupRejectsImplausibleDistances(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/search/`),
		httpmock.NewStringResponder(200, searchPage))
	// 3000 mi and 0 min both fail the sanity ranges.
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(`/maps/dir/`),
		httpmock.NewStringResponder(200, `<html><body><div>3000 mi (0 min)</div></body></html>`))

	info, err := c.Lookup(context.Background(), "Westchester Honda")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.DistanceMiles != nil || info.DrivingTimeMinutes != nil {
		t.Errorf("implausible distances must be discarded, got %v / %v",
			info.DistanceMiles, info.DrivingTimeMinutes)
	}
}
