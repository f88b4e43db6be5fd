package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carhunt/go-rank-dealers/models"
	"github.com/carhunt/go-rank-dealers/rank"
)

// LoadSummary accounts for rows dropped while normalizing a dataset.
type LoadSummary struct {
	Rows            int
	MissingRequired int
	BadPrice        int
	Loaded          int
}

// LoadListings reads a listing dataset (CSV or JSONL, by extension) into the
// normalized rows the fairness engine consumes. Rows without a dealer name,
// price, year, make, or model are dropped and counted, not errors.
func LoadListings(path string) ([]rank.Listing, LoadSummary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return loadListingsJSONL(path)
	default:
		return loadListingsCSV(path)
	}
}

func loadListingsCSV(path string) ([]rank.Listing, LoadSummary, error) {
	var sum LoadSummary

	f, err := os.Open(path)
	if err != nil {
		return nil, sum, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, sum, fmt.Errorf("read dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, sum, fmt.Errorf("dataset %s has no header row", path)
	}

	cols := resolveColumns(rows[0], listingAliases)
	for _, required := range []string{"dealer_name", "price", "year", "make", "model"} {
		if _, ok := cols[required]; !ok {
			return nil, sum, fmt.Errorf("dataset %s missing required column %q", path, required)
		}
	}

	cell := func(row []string, canonical string) string {
		i, ok := cols[canonical]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var listings []rank.Listing
	for _, row := range rows[1:] {
		sum.Rows++
		l := rank.Listing{
			DealerName: cell(row, "dealer_name"),
			Year:       cell(row, "year"),
			Make:       cell(row, "make"),
			Model:      cell(row, "model"),
			Trim:       cell(row, "trim"),
		}
		priceText := cell(row, "price")
		if l.DealerName == "" || l.Year == "" || l.Make == "" || l.Model == "" || priceText == "" {
			sum.MissingRequired++
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(priceText, ",", ""), 64)
		if err != nil || price <= 0 {
			sum.BadPrice++
			continue
		}
		l.Price = price
		listings = append(listings, l)
	}
	sum.Loaded = len(listings)
	return listings, sum, nil
}

func loadListingsJSONL(path string) ([]rank.Listing, LoadSummary, error) {
	var sum LoadSummary

	f, err := os.Open(path)
	if err != nil {
		return nil, sum, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var listings []rank.Listing
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum.Rows++
		var rec models.ListingRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			sum.MissingRequired++
			continue
		}
		if rec.Failed() || rec.DealerName == "" || rec.Year == "" || rec.Make == "" || rec.Model == "" || rec.FullPrice == "" {
			sum.MissingRequired++
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(rec.FullPrice, ",", ""), 64)
		if err != nil || price <= 0 {
			sum.BadPrice++
			continue
		}
		listings = append(listings, rank.Listing{
			DealerName: rec.DealerName,
			Year:       rec.Year,
			Make:       rec.Make,
			Model:      rec.Model,
			Trim:       rec.Trim,
			Price:      price,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, sum, fmt.Errorf("read dataset: %w", err)
	}
	sum.Loaded = len(listings)
	return listings, sum, nil
}

// ReadURLFile reads listing URLs from a CSV input file. The URL column is
// alias-resolved ("Car URL", "url", ...); URLs are deduplicated preserving
// first-seen order.
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("url file %s is empty", path)
	}

	cols := resolveColumns(rows[0], urlAliases)
	idx, ok := cols["url"]
	if !ok {
		return nil, fmt.Errorf("url file %s has no URL column", path)
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		u := strings.TrimSpace(row[idx])
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, nil
}
