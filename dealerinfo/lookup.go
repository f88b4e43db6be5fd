package dealerinfo

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/carhunt/go-rank-dealers/models"
)

const (
	defaultSearchBase = "https://www.google.com"
	lookupUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	memoSize          = 256

	// Sanity ranges for parsed distance and driving time.
	minMiles, maxMiles     = 0.1, 200
	minMinutes, maxMinutes = 1, 300
)

var (
	lookupAddressRe = regexp.MustCompile(`\d+\s+[A-Z][A-Za-z0-9 .]*?\s+(?:St|Ave|Rd|Blvd|Dr|Ln|Way|Pkwy|Hwy|Street|Avenue|Road|Boulevard|Drive|Lane)\b[^,\n]*,\s*[A-Z][A-Za-z ]+,\s*[A-Z]{2}\s+\d{5}`)

	ratingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d\.\d)\s*(?:stars?|out of 5|/\s*5)`),
		regexp.MustCompile(`(?i)Rating[:\s]*(\d\.\d)`),
		regexp.MustCompile(`(?i)"ratingValue"\s*:\s*"?(\d\.\d)"?`),
	}
	reviewCountRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\(?([\d,]+)\)?\s+(?:Google\s+)?reviews?\b`),
		regexp.MustCompile(`(?i)"reviewCount"\s*:\s*"?([\d,]+)"?`),
	}
	milesRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:miles?|mi\.?)\b`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*(?:min(?:utes?)?|mins?)\b`)
)

// Client fetches dealer reputation, address, and driving distance from
// public search pages. A failed lookup for one dealer is reported to the
// caller and never affects the next dealer.
type Client struct {
	http   *resty.Client
	origin string
	memo   *lru.Cache[string, *models.DealerInfo]
}

// ClientOption configures a lookup client.
type ClientOption func(*Client)

// WithSearchBase points the client at a different search host, mainly for
// tests.
func WithSearchBase(base string) ClientOption {
	return func(c *Client) {
		c.http.SetBaseURL(base)
	}
}

// NewClient builds a lookup client computing distances from origin.
func NewClient(origin string, opts ...ClientOption) *Client {
	memo, _ := lru.New[string, *models.DealerInfo](memoSize)
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultSearchBase).
			SetHeader("User-Agent", lookupUserAgent),
		origin: origin,
		memo:   memo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying transport owner, used by tests to
// install a mock transport.
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

// Lookup resolves address, rating, review count, and driving distance for a
// dealer. Partial results are valid: whatever was found is returned. The
// in-process memo bounds duplicate fetches within a run; durable reuse
// across runs is the Cache's job.
func (c *Client) Lookup(ctx context.Context, dealerName string) (*models.DealerInfo, error) {
	if info, ok := c.memo.Get(dealerName); ok {
		return info, nil
	}

	info := &models.DealerInfo{}
	queries := []string{
		dealerName + " dealership",
		dealerName + " auto dealer",
		dealerName + " car dealer",
	}
	var lastErr error
	for _, query := range queries {
		body, err := c.fetch(ctx, "/maps/search/"+url.PathEscape(query))
		if err != nil {
			lastErr = err
			continue
		}
		mergeProfile(info, body)
		if info.Address != "" {
			break
		}
	}
	// Knowledge-panel fallback when maps gave no address or rating.
	if info.Address == "" || info.Rating == nil {
		body, err := c.fetch(ctx, "/search?q="+url.QueryEscape(dealerName+" dealership reviews"))
		if err != nil {
			lastErr = err
		} else {
			mergeProfile(info, body)
		}
	}

	if info.Address == "" && info.Rating == nil && info.ReviewCount == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("lookup %q: %w", dealerName, lastErr)
		}
		return nil, fmt.Errorf("lookup %q: no profile data found", dealerName)
	}

	if info.Address != "" {
		miles, minutes, err := c.distance(ctx, info.Address)
		if err == nil {
			info.DistanceMiles = miles
			info.DrivingTimeMinutes = minutes
		}
	}

	c.memo.Add(dealerName, info)
	return info, nil
}

// distance fetches a directions page and parses "<X> mi, <Y> min" pairs.
func (c *Client) distance(ctx context.Context, destination string) (*float64, *float64, error) {
	body, err := c.fetch(ctx, "/maps/dir/"+url.PathEscape(c.origin)+"/"+url.PathEscape(destination))
	if err != nil {
		return nil, nil, err
	}
	text := visibleText(body)

	var miles, minutes *float64
	for _, line := range strings.Split(text, "\n") {
		m := milesRe.FindStringSubmatch(line)
		t := minutesRe.FindStringSubmatch(line)
		if m == nil || t == nil {
			continue
		}
		dist, errD := strconv.ParseFloat(m[1], 64)
		mins, errT := strconv.ParseFloat(t[1], 64)
		if errD != nil || errT != nil {
			continue
		}
		if dist >= minMiles && dist <= maxMiles && mins >= minMinutes && mins <= maxMinutes {
			miles, minutes = &dist, &mins
			break
		}
	}
	// Fall back to independent scans when no single line carries both.
	if miles == nil {
		for _, m := range milesRe.FindAllStringSubmatch(text, -1) {
			if dist, err := strconv.ParseFloat(m[1], 64); err == nil && dist >= minMiles && dist <= maxMiles {
				miles = &dist
				break
			}
		}
	}
	if minutes == nil {
		for _, t := range minutesRe.FindAllStringSubmatch(text, -1) {
			if mins, err := strconv.ParseFloat(t[1], 64); err == nil && mins >= minMinutes && mins <= maxMinutes {
				minutes = &mins
				break
			}
		}
	}
	return miles, minutes, nil
}

func (c *Client) fetch(ctx context.Context, path string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("lookup request failed: %s", resp.Status())
	}
	return resp.String(), nil
}

// mergeProfile fills any still-missing profile fields from a result page.
func mergeProfile(info *models.DealerInfo, body string) {
	text := visibleText(body)

	if info.Address == "" {
		for _, addr := range lookupAddressRe.FindAllString(text, -1) {
			addr = strings.TrimSpace(addr)
			if len(addr) > 10 {
				info.Address = addr
				break
			}
		}
	}
	if info.Rating == nil {
		for _, re := range ratingRes {
			for _, src := range []string{text, body} {
				if m := re.FindStringSubmatch(src); m != nil {
					if rating, err := strconv.ParseFloat(m[1], 64); err == nil && rating >= 1.0 && rating <= 5.0 {
						info.Rating = &rating
						break
					}
				}
			}
			if info.Rating != nil {
				break
			}
		}
	}
	if info.ReviewCount == nil {
		for _, re := range reviewCountRes {
			for _, src := range []string{text, body} {
				if m := re.FindStringSubmatch(src); m != nil {
					if count, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && count > 0 {
						info.ReviewCount = &count
						break
					}
				}
			}
			if info.ReviewCount != nil {
				break
			}
		}
	}
}

// visibleText approximates the rendered text of a page: markup parsed,
// script and style stripped, block boundaries preserved as newlines.
func visibleText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style, noscript").Remove()
	var b strings.Builder
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		return doc.Text()
	}
	return b.String()
}
