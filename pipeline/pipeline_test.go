package pipeline

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/carhunt/go-rank-dealers/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.ListingRecord
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(records []*models.ListingRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.ListingRecord, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) written() []*models.ListingRecord {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.ListingRecord
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func listing(url, vin string) *models.ListingRecord {
	return &models.ListingRecord{
		URL:        url,
		VIN:        vin,
		Make:       "Honda",
		Model:      "Civic",
		Year:       "2024",
		Trim:       "Sport",
		DealerName: "Dealer " + url,
		ListPrice:  "30995",
		ScrapedAt:  time.Now(),
	}
}

func TestPipelineValidationAndURLDedup(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	valid := listing("http://example.test/1", "1HGCV1F34NA123456")
	noURL := &models.ListingRecord{VIN: "2HGFE2F52NH567890"}
	duplicate := listing("http://example.test/1", "3CZRZ1H56NM734567")

	if err := p.Process(valid, noURL, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 1 {
		t.Fatalf("written records = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["missing_url"] != 1 {
		t.Errorf("missing_url = %d, want 1", validation["missing_url"])
	}
	if validation["duplicate_url"] != 1 {
		t.Errorf("duplicate_url = %d, want 1", validation["duplicate_url"])
	}
}

func TestPipelineDeduplicatesAtClose(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	// Different URLs, same VIN: the streaming URL dedup passes both and the
	// batch dedup at close removes the second.
	first := listing("http://example.test/a", "1HGCV1F34NA123456")
	second := listing("http://example.test/b", "1HGCV1F34NA123456")

	if err := p.Process(first, second); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 1 {
		t.Fatalf("written records = %d, want 1", got)
	}
	sum := p.DedupSummary()
	if sum.Input != 2 || sum.ByVIN != 1 || sum.FinalUnique != 1 {
		t.Errorf("dedup summary = %+v", sum)
	}
}

func TestPipelineScrubsErrorRecords(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	at := time.Now()
	dirty := &models.ListingRecord{
		URL:        "http://example.test/broken",
		SourceFile: "urls.csv",
		ScrapedAt:  at,
		Error:      "timeout: deadline exceeded",
		// Stray extraction fields must not survive on an error record.
		Make:      "Honda",
		FullPrice: "30995",
	}

	if err := p.Process(dirty); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records := writer.written()
	if len(records) != 1 {
		t.Fatalf("written records = %d, want 1", len(records))
	}
	got := records[0]
	if !got.Failed() || got.Error != "timeout: deadline exceeded" {
		t.Errorf("error not carried: %+v", got)
	}
	if got.URL != dirty.URL || got.SourceFile != "urls.csv" || !got.ScrapedAt.Equal(at) {
		t.Errorf("provenance not carried: %+v", got)
	}
	if got.Make != "" || got.FullPrice != "" {
		t.Errorf("extraction fields must be scrubbed: %+v", got)
	}
}

func TestPipelineDerivesFullPrice(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	rec := &models.ListingRecord{
		URL:       "http://example.test/1",
		CashPrice: "30500",
	}
	if err := p.Process(rec); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records := writer.written()
	if len(records) != 1 {
		t.Fatalf("written records = %d, want 1", len(records))
	}
	if records[0].FullPrice != "30500" {
		t.Errorf("FullPrice = %q, want 30500", records[0].FullPrice)
	}
}

func TestPipelineWritesInBatches(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(2)

	for i := 0; i < 65; i++ {
		rec := listing("http://example.test/"+strconv.Itoa(i), "")
		rec.StockNumber = strconv.Itoa(i)
		if err := p.Process(rec); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 65 {
		t.Fatalf("written records = %d, want 65", got)
	}
	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 64 || sizes[1] != 1 {
		t.Errorf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineRejectsProcessAfterClose(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(listing("http://example.test/late", "")); err != ErrPipelineClosed {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}
