// Package rank scores dealerships and produces the ranked table.
package rank

import (
	"sort"

	"github.com/carhunt/go-rank-dealers/models"
)

// Listing is one normalized row entering the fairness computation. Rows with
// a missing dealer, price, or vehicle identity never reach this point.
type Listing struct {
	DealerName string
	Year       string
	Make       string
	Model      string
	Trim       string
	Price      float64
}

// SpecKey groups listings that describe the same vehicle configuration.
func (l Listing) SpecKey() string {
	key := l.Year + "|" + l.Make + "|" + l.Model
	if l.Trim != "" {
		key += "|" + l.Trim
	}
	return key
}

// Fairness maps a dealer's typical deviation from spec-median pricing onto
// [0,100]. The clamp bounds the influence of extreme mispricing and the
// median resists single-listing outliers.
const (
	fairnessClamp = 0.10
)

// ComputeFairness aggregates listings into one DealerStat per dealer with
// listings, unique specs, median relative price, share below median, and the
// fairness score populated. Remaining DealerStat fields are filled later by
// enrichment and the other scorers.
func ComputeFairness(listings []Listing) []*models.DealerStat {
	specPrices := make(map[string][]float64)
	for _, l := range listings {
		key := l.SpecKey()
		specPrices[key] = append(specPrices[key], l.Price)
	}
	specMedians := make(map[string]float64, len(specPrices))
	for key, prices := range specPrices {
		specMedians[key] = median(prices)
	}

	type agg struct {
		relPcts []float64
		specs   map[string]struct{}
	}
	dealers := make(map[string]*agg)
	var order []string
	for _, l := range listings {
		a, ok := dealers[l.DealerName]
		if !ok {
			a = &agg{specs: make(map[string]struct{})}
			dealers[l.DealerName] = a
			order = append(order, l.DealerName)
		}
		specMedian := specMedians[l.SpecKey()]
		if specMedian == 0 {
			continue
		}
		a.relPcts = append(a.relPcts, (l.Price-specMedian)/specMedian)
		a.specs[l.SpecKey()] = struct{}{}
	}

	stats := make([]*models.DealerStat, 0, len(dealers))
	for _, name := range order {
		a := dealers[name]
		if len(a.relPcts) == 0 {
			continue
		}
		below := 0
		for _, pct := range a.relPcts {
			if pct < 0 {
				below++
			}
		}
		stat := &models.DealerStat{
			DealerName:     name,
			Listings:       len(a.relPcts),
			UniqueSpecs:    len(a.specs),
			MedianRelPct:   median(a.relPcts),
			PctBelowMedian: float64(below) / float64(len(a.relPcts)),
		}
		stat.FairnessScore = FairnessScore(stat.MedianRelPct, stat.Listings)
		stats = append(stats, stat)
	}
	return stats
}

// FairnessScore maps a clamped median relative price onto [0,100]
// (-10% => 100, 0 => 50, +10% => 0) with a small-sample penalty so a single
// favorably-priced listing cannot carry a dealer to the top.
func FairnessScore(medianRelPct float64, listings int) float64 {
	clamped := clamp(medianRelPct, -fairnessClamp, fairnessClamp)
	score := 50 - (clamped/fairnessClamp)*50

	switch {
	case listings < 3:
		score *= 0.8
	case listings < 5:
		score *= 0.9
	}
	return clamp(score, 0, 100)
}

// median returns the standard even/odd median of a copied, sorted slice.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
