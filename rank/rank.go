package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carhunt/go-rank-dealers/models"
)

// Weights combines the four component scores into the composite. They are
// configuration, not algorithm: any set summing to 1.0 is valid.
type Weights struct {
	Reviews   float64
	Fairness  float64
	Proximity float64
	Inventory float64
}

// DefaultWeights reflect that reputation and pricing matter most, proximity
// matters, and inventory size is a light nudge.
var DefaultWeights = Weights{
	Reviews:   0.35,
	Fairness:  0.35,
	Proximity: 0.25,
	Inventory: 0.05,
}

// Validate checks the weights sum to 1.0 within floating-point tolerance.
func (w Weights) Validate() error {
	sum := w.Reviews + w.Fairness + w.Proximity + w.Inventory
	if sum < 1-1e-9 || sum > 1+1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Composite returns the weighted sum of the four component scores.
func (w Weights) Composite(s *models.DealerStat) float64 {
	return w.Reviews*s.ReviewsScore +
		w.Fairness*s.FairnessScore +
		w.Proximity*s.ProximityScore +
		w.Inventory*s.InventoryScore
}

// Options configure a ranking run.
type Options struct {
	Weights Weights
	// ExcludeAddress drops any dealer whose address contains this substring
	// (case-insensitive). Empty disables the filter.
	ExcludeAddress string
	// CutoffMinutes is the driving-time cutoff applied both inside the
	// proximity score and as a hard filter.
	CutoffMinutes float64
	// KeepUnknownDistance keeps dealers with no known driving time at the
	// final cutoff instead of dropping them. The drop behavior is primary;
	// this switch exists because the policy is a product decision.
	KeepUnknownDistance bool
}

// Result is a ranked, filtered dealer table plus filter accounting.
type Result struct {
	Dealers          []*models.DealerStat
	ExcludedByAddr   int
	ExcludedByCutoff int
}

// Rank filters, scores, sorts, and rank-numbers the dealer stats. Input
// stats must have fairness populated and enrichment merged; Rank fills the
// remaining component scores, the composite, and Rank.
func Rank(stats []*models.DealerStat, opts Options) Result {
	var res Result

	kept := make([]*models.DealerStat, 0, len(stats))
	for _, s := range stats {
		if opts.ExcludeAddress != "" && s.Address != "" &&
			strings.Contains(strings.ToLower(s.Address), strings.ToLower(opts.ExcludeAddress)) {
			res.ExcludedByAddr++
			continue
		}
		kept = append(kept, s)
	}

	allListings := make([]int, 0, len(kept))
	for _, s := range kept {
		allListings = append(allListings, s.Listings)
	}
	for _, s := range kept {
		s.ReviewsScore = ReviewsScore(s.GoogleRating, s.GoogleReviewCount)
		s.ProximityScore = ProximityScore(s.DrivingTimeMinutes, opts.CutoffMinutes)
		s.InventoryScore = InventoryScore(s.Listings, allListings)
	}

	// Hard distance cutoff. Unknown driving time is disqualifying unless the
	// keep-unknown switch is set, even though the proximity score treated it
	// as neutral above.
	filtered := kept[:0]
	for _, s := range kept {
		switch {
		case s.DrivingTimeMinutes == nil:
			if opts.KeepUnknownDistance {
				filtered = append(filtered, s)
			} else {
				res.ExcludedByCutoff++
			}
		case *s.DrivingTimeMinutes > opts.CutoffMinutes:
			res.ExcludedByCutoff++
		default:
			filtered = append(filtered, s)
		}
	}

	for _, s := range filtered {
		s.CompositeScore = opts.Weights.Composite(s)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.ReviewsScore != b.ReviewsScore {
			return a.ReviewsScore > b.ReviewsScore
		}
		if a.MedianRelPct != b.MedianRelPct {
			return a.MedianRelPct < b.MedianRelPct
		}
		return a.Listings > b.Listings
	})

	for i, s := range filtered {
		s.Rank = i + 1
	}
	res.Dealers = filtered
	return res
}
