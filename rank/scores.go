package rank

import "math"

// Reputation-score constants: a linear rating term over [3.0,5.0] stars and
// a log-scaled volume term over [50,5000] reviews.
const (
	ratingFloor   = 3.0
	ratingCeil    = 5.0
	volumeFloor   = 50
	volumeCeil    = 5000
	lowVolumeMult = 0.6
)

// ReviewsScore converts a rating/review-count pair into [0,100]. Reputation
// is a hard-required signal: a missing rating or count scores 0, not neutral.
func ReviewsScore(rating *float64, reviewCount *int) float64 {
	if rating == nil || reviewCount == nil {
		return 0
	}

	ratingScore := clamp((*rating-ratingFloor)/(ratingCeil-ratingFloor)*100, 0, 100)

	volumeScore := 0.0
	if *reviewCount >= volumeFloor {
		volumeScore = (math.Log10(float64(*reviewCount)) - math.Log10(volumeFloor)) /
			(math.Log10(volumeCeil) - math.Log10(volumeFloor)) * 100
		volumeScore = clamp(volumeScore, 0, 100)
	}

	score := 0.7*ratingScore + 0.3*volumeScore
	if *reviewCount < volumeFloor {
		score *= lowVolumeMult
	}
	return score
}

// ProximityScore converts driving time to [0,100]. Distance is optional
// enrichment, so an unknown time scores a neutral 50 for comparison; the
// final cutoff filter decides separately whether unknowns survive.
func ProximityScore(drivingTimeMinutes *float64, cutoffMinutes float64) float64 {
	if drivingTimeMinutes == nil {
		return 50
	}
	if *drivingTimeMinutes > cutoffMinutes {
		return 0
	}
	return clamp(100-(*drivingTimeMinutes/cutoffMinutes)*100, 0, 100)
}

// InventoryScore min-max normalizes a dealer's listing count against the
// whole comparison set. No spread means no signal, which scores neutral.
func InventoryScore(listings int, allListings []int) float64 {
	if len(allListings) == 0 {
		return 50
	}
	min, max := allListings[0], allListings[0]
	for _, n := range allListings[1:] {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	if min == max {
		return 50
	}
	return clamp(float64(listings-min)/float64(max-min)*100, 0, 100)
}
