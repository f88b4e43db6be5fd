package dealerinfo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/carhunt/go-rank-dealers/models"
)

// Enricher drives lookups for the dealers a ranking run needs, applying the
// exclusion policy and writing every outcome through the cache so an
// interrupted run resumes where it stopped.
type Enricher struct {
	Cache  *Cache
	Client *Client

	// ExcludeAddress marks a dealer Excluded when its address contains this
	// substring (case-insensitive).
	ExcludeAddress string
	// MaybeFarAddress flags a known borderline location in logs when it
	// falls over the cutoff.
	MaybeFarAddress string
	// CutoffMinutes excludes dealers whose known driving time exceeds it.
	CutoffMinutes float64
}

// EnrichSummary counts lookup outcomes for the run report.
type EnrichSummary struct {
	Cached   int
	Fetched  int
	Excluded int
	Failed   int
}

// Enrich ensures every named dealer has a cache entry, fetching the missing
// or partial ones. A failure on one dealer is logged and skipped; the rest
// of the batch proceeds.
func (e *Enricher) Enrich(ctx context.Context, dealerNames []string) EnrichSummary {
	var sum EnrichSummary
	for _, name := range dealerNames {
		if ctx.Err() != nil {
			break
		}
		if !e.Cache.NeedsLookup(name) {
			sum.Cached++
			continue
		}

		info, err := e.Client.Lookup(ctx, name)
		if err != nil {
			slog.Warn("dealer lookup failed", slog.String("dealer", name), slog.Any("error", err))
			sum.Failed++
			continue
		}
		sum.Fetched++

		if e.ExcludeAddress != "" && info.Address != "" &&
			strings.Contains(strings.ToLower(info.Address), strings.ToLower(e.ExcludeAddress)) {
			slog.Info("dealer excluded by address", slog.String("dealer", name))
			if err := e.Cache.PutExcluded(name); err != nil {
				slog.Warn("cache write failed", slog.String("dealer", name), slog.Any("error", err))
			}
			sum.Excluded++
			continue
		}
		if info.DrivingTimeMinutes != nil && *info.DrivingTimeMinutes > e.CutoffMinutes {
			borderline := e.MaybeFarAddress != "" && info.Address != "" &&
				strings.Contains(strings.ToLower(info.Address), strings.ToLower(e.MaybeFarAddress))
			slog.Info("dealer excluded by driving time",
				slog.String("dealer", name),
				slog.Float64("minutes", *info.DrivingTimeMinutes),
				slog.Bool("borderline", borderline),
			)
			if err := e.Cache.PutExcluded(name); err != nil {
				slog.Warn("cache write failed", slog.String("dealer", name), slog.Any("error", err))
			}
			sum.Excluded++
			continue
		}

		if err := e.Cache.PutFound(name, info); err != nil {
			slog.Warn("cache write failed", slog.String("dealer", name), slog.Any("error", err))
		}
	}
	return sum
}

// Merge copies cached enrichment onto dealer stats and drops dealers the
// cache marks Excluded. Dealers never looked up stay in with empty
// enrichment; the ranking cutoff decides their fate.
func Merge(stats []*models.DealerStat, cache *Cache) (kept []*models.DealerStat, excluded int) {
	kept = make([]*models.DealerStat, 0, len(stats))
	for _, s := range stats {
		entry := cache.Get(s.DealerName)
		switch entry.Status {
		case StatusExcluded:
			excluded++
		case StatusFound:
			if entry.Info != nil {
				s.Address = entry.Info.Address
				s.GoogleRating = entry.Info.Rating
				s.GoogleReviewCount = entry.Info.ReviewCount
				s.DistanceMiles = entry.Info.DistanceMiles
				s.DrivingTimeMinutes = entry.Info.DrivingTimeMinutes
			}
			kept = append(kept, s)
		default:
			kept = append(kept, s)
		}
	}
	return kept, excluded
}
