// Package dedupe removes duplicate listing records.
package dedupe

import (
	"strings"

	"github.com/carhunt/go-rank-dealers/models"
)

// Summary reports what a dedup pass did, for the end-of-batch log line.
type Summary struct {
	Input       int
	Valid       int
	Errored     int
	ByVIN       int
	ByComposite int
	FinalUnique int
}

// Records deduplicates a scraped batch. Failed records (non-empty Error) are
// never candidates for removal; they are carried through unchanged after the
// deduplicated valid records. Within the valid records the first occurrence
// always wins whole; fields are never merged across near-duplicates.
//
// Two keys apply in order: VIN (when present), then the composite
// make|model|year|trim|stock|dealer key.
func Records(in []*models.ListingRecord) ([]*models.ListingRecord, Summary) {
	sum := Summary{Input: len(in)}

	var valid, errored []*models.ListingRecord
	for _, rec := range in {
		if rec == nil {
			continue
		}
		if rec.Failed() {
			errored = append(errored, rec)
		} else {
			valid = append(valid, rec)
		}
	}
	sum.Valid = len(valid)
	sum.Errored = len(errored)

	afterVIN := dedupBy(valid, func(r *models.ListingRecord) (string, bool) {
		return r.VIN, r.VIN != ""
	})
	sum.ByVIN = len(valid) - len(afterVIN)

	afterComposite := dedupBy(afterVIN, func(r *models.ListingRecord) (string, bool) {
		key := strings.Join([]string{
			r.Make, r.Model, r.Year, r.Trim, r.StockNumber, r.DealerName,
		}, "|")
		// A key of nothing but separators identifies no vehicle at all.
		return key, strings.Trim(key, "|") != ""
	})
	sum.ByComposite = len(afterVIN) - len(afterComposite)
	sum.FinalUnique = len(afterComposite)

	out := make([]*models.ListingRecord, 0, len(afterComposite)+len(errored))
	out = append(out, afterComposite...)
	out = append(out, errored...)
	return out, sum
}

// dedupBy keeps the first record per key in input order. Records for which
// the key function reports no key are kept unconditionally.
func dedupBy(in []*models.ListingRecord, key func(*models.ListingRecord) (string, bool)) []*models.ListingRecord {
	seen := make(map[string]struct{}, len(in))
	out := make([]*models.ListingRecord, 0, len(in))
	for _, rec := range in {
		k, ok := key(rec)
		if !ok {
			out = append(out, rec)
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}
