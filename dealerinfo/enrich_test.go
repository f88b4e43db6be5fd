package dealerinfo

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/carhunt/go-rank-dealers/models"
)

func registerDealer(searchPattern, page, dirPattern, dirPage string) {
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(searchPattern),
		httpmock.NewStringResponder(200, page))
	httpmock.RegisterRegexpResponder("GET", regexp.MustCompile(dirPattern),
		httpmock.NewStringResponder(200, dirPage))
}

func TestEnrichAppliesExclusionPolicies(t *testing.T) {
	c := newTestClient(t)

	registerDealer(`/maps/search/.*Near`,
		`<html><body><div>9 Main St, Yonkers, NY 10701</div><div>4.5 stars</div><div>(200) reviews</div></body></html>`,
		`/maps/dir/.*Main`,
		`<html><body><div>5.0 mi (10 min)</div></body></html>`)
	registerDealer(`/maps/search/.*Far`,
		`<html><body><div>2 Ocean Pkwy, Babylon, NY 11702</div><div>4.1 stars</div><div>(900) reviews</div></body></html>`,
		`/maps/dir/.*Ocean`,
		`<html><body><div>40.0 mi (45 min)</div></body></html>`)
	registerDealer(`/maps/search/.*Franklin`,
		`<html><body><div>229 N Franklin St, Hempstead, NY 11550</div><div>4.8 stars</div><div>(2,000) reviews</div></body></html>`,
		`/maps/dir/.*Franklin`,
		`<html><body><div>22.0 mi (28 min)</div></body></html>`)

	cache := Open(filepath.Join(t.TempDir(), "dealers.json"))
	e := &Enricher{
		Cache:          cache,
		Client:         c,
		ExcludeAddress: "229 N Franklin St, Hempstead",
		CutoffMinutes:  30,
	}

	sum := e.Enrich(context.Background(), []string{"Near Honda", "Far Nissan", "Franklin Kia"})
	if sum.Fetched != 3 || sum.Excluded != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	if got := cache.Get("Near Honda"); got.Status != StatusFound {
		t.Errorf("Near Honda status = %q, want found", got.Status)
	}
	// Over the driving-time cutoff.
	if got := cache.Get("Far Nissan"); got.Status != StatusExcluded {
		t.Errorf("Far Nissan status = %q, want excluded", got.Status)
	}
	// Matches the excluded address.
	if got := cache.Get("Franklin Kia"); got.Status != StatusExcluded {
		t.Errorf("Franklin Kia status = %q, want excluded", got.Status)
	}
}

func TestEnrichSkipsCompleteEntries(t *testing.T) {
	c := newTestClient(t)
	// No responders: any fetch would fail.

	cache := Open(filepath.Join(t.TempDir(), "dealers.json"))
	minutes := 12.0
	cache.PutFound("Cached Dealer", &models.DealerInfo{
		Address:            "1 Main St, Yonkers, NY",
		DrivingTimeMinutes: &minutes,
	})
	cache.PutExcluded("Gone Dealer")

	e := &Enricher{Cache: cache, Client: c, CutoffMinutes: 30}
	sum := e.Enrich(context.Background(), []string{"Cached Dealer", "Gone Dealer"})
	if sum.Cached != 2 || sum.Fetched != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestEnrichIsolatesFailures(t *testing.T) {
	c := newTestClient(t)
	registerDealer(`/maps/search/.*Good`,
		`<html><body><div>9 Main St, Yonkers, NY 10701</div><div>4.5 stars</div><div>(200) reviews</div></body></html>`,
		`/maps/dir/.*Main`,
		`<html><body><div>5.0 mi (10 min)</div></body></html>`)
	// "Bad Dealer" has no responder, so its lookup errors.

	cache := Open(filepath.Join(t.TempDir(), "dealers.json"))
	e := &Enricher{Cache: cache, Client: c, CutoffMinutes: 30}

	sum := e.Enrich(context.Background(), []string{"Bad Dealer", "Good Honda"})
	if sum.Failed != 1 || sum.Fetched != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := cache.Get("Good Honda"); got.Status != StatusFound {
		t.Errorf("Good Honda status = %q, want found", got.Status)
	}
	// A failed lookup leaves no entry, so the next run retries it.
	if got := cache.Get("Bad Dealer"); got.Status != StatusNotLookedUp {
		t.Errorf("Bad Dealer status = %q, want not_looked_up", got.Status)
	}
}

func TestMerge(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), "dealers.json"))
	rating := 4.6
	count := 1234
	miles := 12.5
	minutes := 25.0
	cache.PutFound("Found Dealer", &models.DealerInfo{
		Address:            "55 Bank St, White Plains, NY 10601",
		Rating:             &rating,
		ReviewCount:        &count,
		DistanceMiles:      &miles,
		DrivingTimeMinutes: &minutes,
	})
	cache.PutExcluded("Excluded Dealer")

	stats := []*models.DealerStat{
		{DealerName: "Found Dealer"},
		{DealerName: "Excluded Dealer"},
		{DealerName: "Unknown Dealer"},
	}

	kept, excluded := Merge(stats, cache)
	if excluded != 1 {
		t.Fatalf("excluded = %d, want 1", excluded)
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}

	found := kept[0]
	if found.Address != "55 Bank St, White Plains, NY 10601" {
		t.Errorf("Address = %q", found.Address)
	}
	if found.GoogleRating == nil || *found.GoogleRating != rating {
		t.Errorf("GoogleRating = %v", found.GoogleRating)
	}
	if found.GoogleReviewCount == nil || *found.GoogleReviewCount != count {
		t.Errorf("GoogleReviewCount = %v", found.GoogleReviewCount)
	}
	if found.DrivingTimeMinutes == nil || *found.DrivingTimeMinutes != minutes {
		t.Errorf("DrivingTimeMinutes = %v", found.DrivingTimeMinutes)
	}

	unknown := kept[1]
	if unknown.DealerName != "Unknown Dealer" {
		t.Fatalf("kept[1] = %q", unknown.DealerName)
	}
	if unknown.Address != "" || unknown.GoogleRating != nil || unknown.DrivingTimeMinutes != nil {
		t.Errorf("unknown dealer must keep empty enrichment: %+v", unknown)
	}
}
