package extract

import (
	"regexp"
	"strings"
)

// Static per-field patterns. Labeled-value patterns follow the page's
// "<Label>: $1,234" convention with optional separators and digit grouping.
var (
	// 17-character VIN alphabet: digits plus letters excluding I, O, Q.
	vinRe = regexp.MustCompile(`\b([A-HJ-NPR-Z0-9]{17})\b`)

	stockRe = regexp.MustCompile(`(?i)Stock\s+([A-Z0-9]+)(?:\s|Listed|$)`)

	msrpRe      = regexp.MustCompile(`(?i)MSRP[:\s]+\$?([0-9,]+)`)
	listPriceRe = regexp.MustCompile(`(?i)List\s+price[:\s]+\$?([0-9,]+)`)
	cashPriceRe = regexp.MustCompile(`(?i)Cash\s+price[:\s]+\$?([0-9,]+)`)
	yourPriceRe = regexp.MustCompile(`(?i)Your\s+price[:\s]+\$?([0-9,]+)`)
	discountRe  = regexp.MustCompile(`(?i)Dealer\s+discount[:\s]+[-$]?\$?([0-9,]+)`)
	financeRe   = regexp.MustCompile(`(?i)Finance[:\s]+\$([0-9,]+)/mo`)

	perMonthRe    = regexp.MustCompile(`\$([0-9,]+)/mo`)
	leaseNearbyRe = regexp.MustCompile(`(?i)lease[^$]*\$([0-9,]+)/mo`)

	leaseTextRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Lease[:\s]+\$([0-9,]+)/mo`),
		regexp.MustCompile(`(?i)\$([0-9,]+)/mo[^0-9]*lease`),
		regexp.MustCompile(`(?i)lease[^$]*\$([0-9,]+)/mo`),
		regexp.MustCompile(`(?i)\$([0-9,]+)/mo.*?Estimate`),
	}
	leaseAttrRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)data-lease[^=]*=["']([0-9,]+)`),
		regexp.MustCompile(`(?i)data-monthly[^=]*=["']([0-9,]+)`),
	}

	extColorRe     = regexp.MustCompile(`(?i)Exterior\s+color[:\s]+([^\n]+)`)
	intColorRe     = regexp.MustCompile(`(?i)Interior\s+color[:\s]+([^\n]+)`)
	transmissionRe = regexp.MustCompile(`(?i)Transmission[:\s]+([^\n]+)`)
	drivetrainRe   = regexp.MustCompile(`(?i)Drive\s*train[:\s]+([^\n]+)`)
	engineRe       = regexp.MustCompile(`(?i)Engine[:\s]+([^\n]+)`)
	fuelTypeRe     = regexp.MustCompile(`(?i)Fuel\s+type[:\s]+([^\n]+)`)

	mpgRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)MPG[:\s]+(\d+)\s*city\s*/\s*(\d+)\s*highway`),
		regexp.MustCompile(`(?i)(\d+)\s*city\s*/\s*(\d+)\s*highway`),
	}

	forSaleSuffixRe = regexp.MustCompile(`(?i)\s+For Sale.*$`)

	// Visible street address: number, street name, street type, city, state,
	// optional ZIP.
	addressRe = regexp.MustCompile(`\d+\s+[A-Z][A-Za-z0-9 .]*?\s+(?:St|Ave|Rd|Blvd|Dr|Ln|Way|Pkwy|Hwy|Street|Avenue|Road|Boulevard|Drive|Lane)\b[^,\n]*,\s*[A-Z][A-Za-z ]+,\s*[A-Z]{2}(?:\s+\d{5})?`)

	// Structured address components embedded in page scripts.
	addrStreetKeyRe = regexp.MustCompile(`(?i)"(?:address1|streetAddress)"\s*:\s*"([^"]+)"`)
	addrCityKeyRe   = regexp.MustCompile(`(?i)"(?:city|addressLocality)"\s*:\s*"([^"]+)"`)
	addrStateKeyRe  = regexp.MustCompile(`(?i)"(?:state|addressRegion)"\s*:\s*"([A-Za-z]{2})"`)
	addrZipKeyRe    = regexp.MustCompile(`(?i)"(?:zip|postalCode)"\s*:\s*"(\d{5}(?:-\d{4})?)"`)

	// Embedded dealer/seller name keys scanned inside page scripts.
	dealerKeyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"dealershipName"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"dealerName"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"sellerName"\s*:\s*"([^"]+)"`),
	}

	// City/state token such as "New Rochelle, NY".
	cityStateRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}),\s*[A-Z]{2}\b`)
)

// compile builds the vocabulary-dependent patterns.
func (e *Extractor) compile() {
	makeAlt := alternation(e.makes)
	brandAlt := alternation(e.brands)

	e.titleRe = regexp.MustCompile(
		`(?:New\s+)?(\d{4})\s+(` + makeAlt + `)\s+(\w+)\s+(.+?)(?:\s*[-|]|For Sale|$)`)
	e.brandOfRe = regexp.MustCompile(
		`\b(` + brandAlt + `)\s+of\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
	// Case-sensitive: the location must be capitalized words, or feature
	// prose upstream of a brand mention would capture as a location.
	e.locBrand = regexp.MustCompile(
		`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\s+(` + brandAlt + `)\b`)
	e.brandWord = regexp.MustCompile(`(?i)\b(of|` + brandAlt + `)\b`)
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// submatch returns the first capture group of the first match, trimmed.
func submatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	for i := 1; i < len(m); i++ {
		if m[i] != "" {
			return strings.TrimSpace(m[i])
		}
	}
	return ""
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
