package models

// DealerInfo is the external enrichment looked up once per dealer and kept
// in the persistent cache.
type DealerInfo struct {
	Address            string   `json:"address,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	ReviewCount        *int     `json:"review_count,omitempty"`
	DistanceMiles      *float64 `json:"distance_miles,omitempty"`
	DrivingTimeMinutes *float64 `json:"driving_time_minutes,omitempty"`
}

// DealerStat is one row of the ranking table, recomputed fully on every run.
type DealerStat struct {
	DealerName     string  `json:"dealer_name"`
	Listings       int     `json:"listings"`
	UniqueSpecs    int     `json:"unique_specs"`
	MedianRelPct   float64 `json:"median_rel_pct"`
	PctBelowMedian float64 `json:"pct_below_median"`
	FairnessScore  float64 `json:"fairness_score"`

	// Enrichment merged from the dealer-info cache.
	Address            string   `json:"address,omitempty"`
	GoogleRating       *float64 `json:"google_rating,omitempty"`
	GoogleReviewCount  *int     `json:"google_review_count,omitempty"`
	DistanceMiles      *float64 `json:"distance_miles,omitempty"`
	DrivingTimeMinutes *float64 `json:"driving_time_minutes,omitempty"`

	ReviewsScore   float64 `json:"reviews_score"`
	ProximityScore float64 `json:"proximity_score"`
	InventoryScore float64 `json:"inventory_score"`
	CompositeScore float64 `json:"composite_score"`
	Rank           int     `json:"rank"`
}
