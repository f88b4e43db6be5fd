// Package pipeline coordinates validation, deduplication, and output writing
// for scraped listing records.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carhunt/go-rank-dealers/dedupe"
	"github.com/carhunt/go-rank-dealers/models"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.ListingRecord) error
	Close() error
	Validate() error
}

// Pipeline accepts records from the scraper, validates them, and on Close
// deduplicates the accumulated batch and writes it out. Deduplication needs
// the whole batch (VIN then composite key), so the write happens once at the
// end rather than streaming.
type Pipeline struct {
	writer    OutputWriter
	recordCh  chan *models.ListingRecord
	batchSize int

	wg sync.WaitGroup

	seenURLs map[string]struct{}
	seenMu   sync.Mutex

	records   []*models.ListingRecord
	recordsMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err/dedupSummary
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once

	dedupSummary dedupe.Summary
}

// NewPipeline builds a pipeline with a modest in-memory buffer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{
		writer:    writer,
		recordCh:  make(chan *models.ListingRecord, 512),
		batchSize: 64,
		seenURLs:  make(map[string]struct{}),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues records for downstream processing.
func (p *Pipeline) Process(records ...*models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := p.enqueue(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close drains workers, deduplicates the accumulated batch, and writes it.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	p.wg.Wait()

	if err := p.Err(); err != nil {
		return err
	}
	return p.flush()
}

// flush runs the batch dedup and writes the result in writer-sized chunks.
func (p *Pipeline) flush() error {
	p.recordsMu.Lock()
	batch := p.records
	p.records = nil
	p.recordsMu.Unlock()

	deduped, summary := dedupe.Records(batch)
	p.mu.Lock()
	p.dedupSummary = summary
	p.mu.Unlock()

	slog.Info("deduplicated batch",
		slog.Int("input", summary.Input),
		slog.Int("valid", summary.Valid),
		slog.Int("errored", summary.Errored),
		slog.Int("removed_by_vin", summary.ByVIN),
		slog.Int("removed_by_composite", summary.ByComposite),
	)

	for start := 0; start < len(deduped); start += p.batchSize {
		end := start + p.batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		if err := p.writer.Write(deduped[start:end]); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	return nil
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// DedupSummary reports the dedup accounting after Close.
func (p *Pipeline) DedupSummary() dedupe.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dedupSummary
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				processed := metrics["processed_records"].(int64)
				validation := metrics["validation_errors"].(map[string]int)
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("validation_error_kinds", len(validation)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for rec := range p.recordCh {
		prepared := p.prepare(rec)
		if prepared == nil {
			continue
		}
		p.recordsMu.Lock()
		p.records = append(p.records, prepared)
		p.recordsMu.Unlock()
	}
}

// prepare validates a record and applies the streaming URL dedup. Failed
// records are rebuilt so they carry only url, source, timestamp, and error.
func (p *Pipeline) prepare(rec *models.ListingRecord) *models.ListingRecord {
	if rec.URL == "" {
		p.metrics.addValidation("missing_url")
		return nil
	}

	p.seenMu.Lock()
	if _, ok := p.seenURLs[rec.URL]; ok {
		p.seenMu.Unlock()
		p.metrics.addValidation("duplicate_url")
		return nil
	}
	p.seenURLs[rec.URL] = struct{}{}
	p.seenMu.Unlock()

	if rec.Failed() {
		rec = models.NewErrorRecord(rec.URL, rec.SourceFile, rec.ScrapedAt, errors.New(rec.Error))
		p.metrics.addValidation("error_record")
	} else {
		rec.DeriveFullPrice()
	}

	p.metrics.incrementProcessed()
	return rec
}

func (p *Pipeline) enqueue(rec *models.ListingRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.recordCh <- rec:
		return nil
	}
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
