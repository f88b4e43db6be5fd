// Package models defines data structures shared by the scraper and ranker.
package models

import "time"

// ListingRecord is one scraped vehicle listing. String fields use the empty
// string to mean "not extracted"; a record with a non-empty Error carries no
// extraction fields at all.
type ListingRecord struct {
	Make           string    `csv:"make" json:"make"`
	Model          string    `csv:"model" json:"model"`
	Trim           string    `csv:"trim" json:"trim"`
	Year           string    `csv:"year" json:"year"`
	DealerName     string    `csv:"dealer_name" json:"dealer_name"`
	LeaseMonthly   string    `csv:"lease_monthly" json:"lease_monthly"`
	FullPrice      string    `csv:"full_price" json:"full_price"`
	VIN            string    `csv:"vin" json:"vin"`
	StockNumber    string    `csv:"stock_number" json:"stock_number"`
	MSRP           string    `csv:"msrp" json:"msrp"`
	ListPrice      string    `csv:"list_price" json:"list_price"`
	CashPrice      string    `csv:"cash_price" json:"cash_price"`
	YourPrice      string    `csv:"your_price" json:"your_price"`
	DealerDiscount string    `csv:"dealer_discount" json:"dealer_discount"`
	FinanceMonthly string    `csv:"finance_monthly" json:"finance_monthly"`
	ExteriorColor  string    `csv:"exterior_color" json:"exterior_color"`
	InteriorColor  string    `csv:"interior_color" json:"interior_color"`
	MPG            string    `csv:"mpg" json:"mpg"`
	Transmission   string    `csv:"transmission" json:"transmission"`
	Drivetrain     string    `csv:"drivetrain" json:"drivetrain"`
	Engine         string    `csv:"engine" json:"engine"`
	FuelType       string    `csv:"fuel_type" json:"fuel_type"`
	DealerAddress  string    `csv:"dealer_address" json:"dealer_address"`
	SourceFile     string    `csv:"source_file" json:"source_file"`
	URL            string    `csv:"url" json:"url"`
	ScrapedAt      time.Time `csv:"scrape_timestamp" json:"scrape_timestamp"`
	Error          string    `csv:"error" json:"error"`
}

// Columns lists the CSV column order for listing datasets. Vehicle identity
// and commercial fields come first so spreadsheets open on what matters.
var Columns = []string{
	"make", "model", "trim", "year",
	"dealer_name", "lease_monthly", "full_price",
	"vin", "stock_number",
	"msrp", "list_price", "cash_price", "your_price", "dealer_discount", "finance_monthly",
	"exterior_color", "interior_color", "mpg",
	"transmission", "drivetrain", "engine", "fuel_type", "dealer_address",
	"source_file", "url", "scrape_timestamp", "error",
}

// Failed reports whether the record represents a failed scrape attempt.
func (r *ListingRecord) Failed() bool {
	return r.Error != ""
}

// DeriveFullPrice fills FullPrice from the first available price source.
// Priority: list price, cash price, MSRP, "your price".
func (r *ListingRecord) DeriveFullPrice() {
	switch {
	case r.ListPrice != "":
		r.FullPrice = r.ListPrice
	case r.CashPrice != "":
		r.FullPrice = r.CashPrice
	case r.MSRP != "":
		r.FullPrice = r.MSRP
	case r.YourPrice != "":
		r.FullPrice = r.YourPrice
	default:
		r.FullPrice = ""
	}
}

// SpecKey returns the vehicle-configuration grouping key year|make|model,
// with the trim segment appended only when trim is present.
func (r *ListingRecord) SpecKey() string {
	key := r.Year + "|" + r.Make + "|" + r.Model
	if r.Trim != "" {
		key += "|" + r.Trim
	}
	return key
}

// NewErrorRecord builds the record persisted when a scrape attempt fails.
// Only provenance fields are set; every extraction field stays empty.
func NewErrorRecord(url, sourceFile string, scrapedAt time.Time, err error) *ListingRecord {
	return &ListingRecord{
		URL:        url,
		SourceFile: sourceFile,
		ScrapedAt:  scrapedAt,
		Error:      err.Error(),
	}
}
