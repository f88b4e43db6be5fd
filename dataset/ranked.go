package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/carhunt/go-rank-dealers/models"
)

// RankedColumns is the presentation order of the ranked dealer table.
var RankedColumns = []string{
	"rank", "dealer_name", "address", "driving_time_minutes", "distance_miles",
	"google_rating", "google_review_count", "listings", "unique_specs",
	"median_rel_pct", "pct_below_median", "fairness_score",
	"reviews_score", "proximity_score", "inventory_score", "composite_score",
}

// RankedRow formats one dealer for presentation: relative percentages scaled
// to whole percent (2 and 1 decimals), all scores to 1 decimal, missing
// enrichment as empty cells.
func RankedRow(s *models.DealerStat) []string {
	return []string{
		strconv.Itoa(s.Rank),
		s.DealerName,
		s.Address,
		formatFloatPtr(s.DrivingTimeMinutes, 0),
		formatFloatPtr(s.DistanceMiles, 1),
		formatFloatPtr(s.GoogleRating, 1),
		formatIntPtr(s.GoogleReviewCount),
		strconv.Itoa(s.Listings),
		strconv.Itoa(s.UniqueSpecs),
		formatFloat(s.MedianRelPct*100, 2),
		formatFloat(s.PctBelowMedian*100, 1),
		formatFloat(s.FairnessScore, 1),
		formatFloat(s.ReviewsScore, 1),
		formatFloat(s.ProximityScore, 1),
		formatFloat(s.InventoryScore, 1),
		formatFloat(s.CompositeScore, 1),
	}
}

// WriteRankedCSV writes the ranked table with the presentation columns.
func WriteRankedCSV(path string, dealers []*models.DealerStat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ranked output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(RankedColumns); err != nil {
		return fmt.Errorf("write ranked header: %w", err)
	}
	for _, s := range dealers {
		if err := w.Write(RankedRow(s)); err != nil {
			return fmt.Errorf("write ranked row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ranked output: %w", err)
	}
	return nil
}

func formatFloat(v float64, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', decimals, 64)
}

func formatFloatPtr(v *float64, decimals int) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, decimals)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
