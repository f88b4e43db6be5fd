// Package dataset reads listing datasets and URL files and writes the
// ranked dealer table.
package dataset

import "strings"

// columnAlias binds a canonical column to the header spellings accepted for
// it. Resolution walks this list in order once per file, producing a fixed
// schema downstream; nothing later in the pipeline guesses column names.
type columnAlias struct {
	canonical string
	aliases   []string
}

var listingAliases = []columnAlias{
	{"dealer_name", []string{"dealer_name", "dealer", "dealership"}},
	{"year", []string{"year"}},
	{"make", []string{"make"}},
	{"model", []string{"model"}},
	{"trim", []string{"trim", "variant"}},
	{"price", []string{"full_price", "price", "cash_price", "list_price", "sale_price"}},
	{"url", []string{"url", "listing_url", "source_url"}},
}

var urlAliases = []columnAlias{
	{"url", []string{"car_url", "url", "listing_url"}},
}

// normalizeHeader lowercases and strips separators so "Car URL", "car_url",
// and "carurl" compare equal.
func normalizeHeader(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, " ", "")
	return name
}

// resolveColumns maps canonical names to header indexes. A canonical column
// resolves to the first header matching any of its aliases; unmatched
// canonicals are simply absent from the result.
func resolveColumns(header []string, aliases []columnAlias) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}
	resolved := make(map[string]int, len(aliases))
	for _, ca := range aliases {
	search:
		for _, alias := range ca.aliases {
			want := normalizeHeader(alias)
			for i, have := range normalized {
				if have == "" {
					continue
				}
				if have == want || strings.Contains(have, want) || strings.Contains(want, have) {
					resolved[ca.canonical] = i
					break search
				}
			}
		}
	}
	return resolved
}
