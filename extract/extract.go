// Package extract recovers structured listing fields from raw page content.
//
// Extraction is a prioritized cascade, not a single parse: each field defines
// an ordered list of strategies and the first one producing a valid value
// wins. A strategy that fails (missing node, malformed JSON, no match) simply
// falls through to the next, so layout drift on one part of a page never
// costs more than that one field.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/carhunt/go-rank-dealers/models"
)

// Page carries the pre-fetched content of one listing page. Text is the
// rendered body text, HTML the raw markup (used for embedded script and
// structured-data scanning), Title the document title.
type Page struct {
	URL   string
	Title string
	Text  string
	HTML  string
}

// DefaultMakes is the vocabulary the title parser recognises. The joint
// year/make/model/trim parse only fires for these makes.
var DefaultMakes = []string{"Honda", "Toyota", "Nissan", "Mazda", "Subaru"}

// DefaultBrands is the wider brand vocabulary used by the dealer-name
// strategies ("<Brand> of <Location>" and "<Location> <Brand>").
var DefaultBrands = []string{
	"Honda", "Toyota", "Nissan", "Mazda", "Subaru", "Ford", "Chevrolet",
	"Hyundai", "Kia", "BMW", "Mercedes", "Audi", "Lexus", "Acura",
	"Infiniti", "Volvo", "Jeep", "Ram", "Dodge", "Chrysler", "Buick",
	"Cadillac", "GMC", "Lincoln", "Genesis",
}

// DefaultStopWords reject dealer-name candidates assembled from vehicle
// feature text ("Heated Driver Seat", "Dual Zone Climate Control", ...).
var DefaultStopWords = []string{
	"heated", "driver", "seat", "climate", "control", "zone",
	"not", "available", "hybrid", "visit", "discover", "notes",
}

// genericSellerNames are structured-data seller values that identify the
// marketplace rather than a dealership.
var genericSellerNames = map[string]struct{}{
	"truecar":          {},
	"dealer":           {},
	"certified dealer": {},
}

// Extractor applies the per-field strategy cascades. The zero value is not
// usable; construct with New.
type Extractor struct {
	makes     []string
	brands    []string
	stopWords []string

	titleRe   *regexp.Regexp
	brandOfRe *regexp.Regexp
	locBrand  *regexp.Regexp
	brandWord *regexp.Regexp
}

// Option tweaks the extractor vocabulary.
type Option func(*Extractor)

// WithMakes overrides the title-parse make vocabulary.
func WithMakes(makes []string) Option {
	return func(e *Extractor) {
		if len(makes) > 0 {
			e.makes = makes
		}
	}
}

// WithBrands overrides the dealer-name brand vocabulary.
func WithBrands(brands []string) Option {
	return func(e *Extractor) {
		if len(brands) > 0 {
			e.brands = brands
		}
	}
}

// WithStopWords overrides the dealer-name reject vocabulary.
func WithStopWords(words []string) Option {
	return func(e *Extractor) {
		if len(words) > 0 {
			e.stopWords = words
		}
	}
}

// New builds an Extractor with the default vocabulary, applying options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		makes:     DefaultMakes,
		brands:    DefaultBrands,
		stopWords: DefaultStopWords,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.compile()
	return e
}

// Extract produces a best-effort record for one listing page. Every field is
// independently optional; a miss leaves the field empty and never aborts the
// remaining fields.
func (e *Extractor) Extract(p *Page) *models.ListingRecord {
	rec := &models.ListingRecord{
		URL:       p.URL,
		ScrapedAt: time.Now(),
	}

	// The document parse is shared by the DOM-based strategies. A parse
	// failure just disables those strategies.
	var doc *goquery.Document
	if p.HTML != "" {
		if d, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML)); err == nil {
			doc = d
		}
	}

	rec.VIN = submatch(vinRe, p.Text)
	e.extractVehicle(p.Title, rec)
	rec.StockNumber = submatch(stockRe, p.Text)

	rec.DealerName = e.extractDealerName(p, doc)
	rec.DealerAddress = extractAddress(p)

	rec.MSRP = stripCommas(submatch(msrpRe, p.Text))
	rec.ListPrice = stripCommas(submatch(listPriceRe, p.Text))
	rec.CashPrice = stripCommas(submatch(cashPriceRe, p.Text))
	rec.YourPrice = stripCommas(submatch(yourPriceRe, p.Text))
	rec.DealerDiscount = stripCommas(submatch(discountRe, p.Text))
	rec.FinanceMonthly = stripCommas(submatch(financeRe, p.Text))
	rec.LeaseMonthly = extractLease(p, doc)
	rec.DeriveFullPrice()

	rec.ExteriorColor = submatch(extColorRe, p.Text)
	rec.InteriorColor = submatch(intColorRe, p.Text)
	rec.Transmission = submatch(transmissionRe, p.Text)
	rec.Drivetrain = submatch(drivetrainRe, p.Text)
	rec.Engine = submatch(engineRe, p.Text)
	rec.FuelType = submatch(fuelTypeRe, p.Text)
	rec.MPG = extractMPG(p.Text)

	return rec
}

// extractVehicle parses year, make, model, and trim jointly from the page
// title. The contract is all-or-nothing: a partial match sets none of the
// four fields.
func (e *Extractor) extractVehicle(title string, rec *models.ListingRecord) {
	m := e.titleRe.FindStringSubmatch(title)
	if len(m) < 5 {
		return
	}
	trim := strings.TrimSpace(m[4])
	trim = forSaleSuffixRe.ReplaceAllString(trim, "")
	trim = strings.TrimSpace(trim)
	if trim == "" {
		return
	}
	rec.Year = m[1]
	rec.Make = m[2]
	rec.Model = m[3]
	rec.Trim = trim
}

// extractAddress finds a postal address, first as visible street text, then
// from structured address components embedded in the markup.
func extractAddress(p *Page) string {
	if m := addressRe.FindString(p.Text); m != "" {
		return strings.TrimSpace(m)
	}
	street := submatch(addrStreetKeyRe, p.HTML)
	if street == "" {
		return ""
	}
	parts := []string{street}
	if city := submatch(addrCityKeyRe, p.HTML); city != "" {
		parts = append(parts, city)
	}
	if state := submatch(addrStateKeyRe, p.HTML); state != "" {
		parts = append(parts, state)
	}
	if zip := submatch(addrZipKeyRe, p.HTML); zip != "" {
		parts = append(parts, zip)
	}
	return strings.Join(parts, ", ")
}

// extractLease resolves the monthly lease payment. The lease figure hides
// behind a pricing toggle on most layouts, so the DOM-scoped lookups run
// before the plain-text patterns.
func extractLease(p *Page, doc *goquery.Document) string {
	if doc != nil {
		// Price element scoped to the lease pricing item.
		sel := doc.Find(`span[data-test="pricingSectionRadioGroupPrice"][data-test-item="lease"]`)
		if sel.Length() > 0 {
			if v := submatch(perMonthRe, sel.First().Text()); v != "" {
				return stripCommas(v)
			}
		}
		// Any pricing radio item whose identifier mentions lease.
		var found string
		doc.Find(`[data-test="pricingSectionRadioGroupPrice"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			item, _ := s.Attr("data-test-item")
			if !strings.Contains(strings.ToLower(item), "lease") {
				return true
			}
			if v := submatch(perMonthRe, s.Text()); v != "" {
				found = stripCommas(v)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
		// Pricing containers mentioning lease near a monthly price.
		doc.Find(`[data-test*="pricing"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 10 {
				return false
			}
			text := s.Text()
			if !strings.Contains(strings.ToLower(text), "lease") {
				return true
			}
			if v := submatch(leaseNearbyRe, text); v != "" {
				found = stripCommas(v)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for _, re := range leaseTextRes {
		if v := submatch(re, p.Text); v != "" {
			return stripCommas(v)
		}
	}
	for _, re := range leaseAttrRes {
		if v := submatch(re, p.HTML); v != "" {
			return stripCommas(v)
		}
	}
	return ""
}

// extractMPG stores both figures pre-formatted as "<city> city / <highway> highway".
func extractMPG(text string) string {
	for _, re := range mpgRes {
		if m := re.FindStringSubmatch(text); len(m) >= 3 {
			return m[1] + " city / " + m[2] + " highway"
		}
	}
	return ""
}
