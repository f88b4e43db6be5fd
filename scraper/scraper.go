// Package scraper fetches vehicle listing pages and turns them into records.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/carhunt/go-rank-dealers/config"
	"github.com/carhunt/go-rank-dealers/extract"
	"github.com/carhunt/go-rank-dealers/models"
	"github.com/carhunt/go-rank-dealers/pipeline"
)

// Source is one batch of listing URLs and the input file they came from. The
// file name is carried onto every record for provenance.
type Source struct {
	File string
	URLs []string
}

// Scraper wraps the colly collector, the field extractor, and retry logic.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	extractor *extract.Extractor
	retry     *retryManager
	Metrics   *Metrics

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	sourceByURL  map[string]string
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	// Retries revisit the same URL.
	collector.AllowURLRevisit = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		extractor:    extract.New(),
		sourceByURL:  make(map[string]string),
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(collector, cfg, s.Metrics)
	return s, nil
}

// Run visits every source URL and streams extracted records through the
// pipeline. A page that cannot be fetched after retries still produces a
// record, carrying the error instead of listing fields.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline, sources []Source) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	visited := 0
	for _, src := range sources {
		for _, u := range src.URLs {
			if ctx.Err() != nil {
				break
			}
			s.mu.Lock()
			if _, dup := s.sourceByURL[u]; dup {
				s.mu.Unlock()
				continue
			}
			s.sourceByURL[u] = src.File
			s.mu.Unlock()

			if err := s.collector.Visit(u); err != nil {
				slog.Warn("visit rejected", slog.String("url", u), slog.Any("error", err))
				continue
			}
			visited++
		}
	}
	if visited == 0 {
		s.collector.Wait()
		s.retry.Stop()
		return nil, fmt.Errorf("no URLs to visit")
	}

	s.collector.Wait()
	s.retry.Stop()

	result := &models.ScrapeResult{
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
	}

	if metrics := p.GetMetrics(); metrics != nil {
		if processed, ok := metrics["processed_records"].(int64); ok {
			result.TotalCount = int(processed)
		}
	}

	return result, nil
}

func (s *Scraper) configureHandlers(p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("scraper request progress",
					slog.Int64("requests", current),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			if r.StatusCode >= http.StatusBadRequest {
				slog.Error("non-200 response",
					slog.Int("status", r.StatusCode),
					slog.String("url", r.Request.URL.String()),
				)
				return
			}

			pageURL := r.Request.URL.String()
			page := pageFromResponse(r)
			rec := s.extractRecord(page, s.sourceFor(pageURL))

			if !rec.Failed() {
				s.Metrics.IncListings()
				s.countFields(rec)
			}
			if err := p.Process(rec); err != nil && err != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			pageURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
			slog.Error("request error",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			if s.retry.Schedule(pageURL) {
				return
			}

			s.mu.Lock()
			s.failedURLs = append(s.failedURLs, pageURL)
			s.mu.Unlock()

			// Retries exhausted: the URL still gets a record so the failure
			// is visible in the output dataset.
			rec := models.NewErrorRecord(pageURL, s.sourceFor(pageURL), time.Now(), classified)
			if perr := p.Process(rec); perr != nil && perr != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", perr))
			}
		})
	})
}

// extractRecord runs the extraction cascade. A panic inside a strategy is
// converted into an error record for that one URL.
func (s *Scraper) extractRecord(page *extract.Page, sourceFile string) (rec *models.ListingRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panic",
				slog.String("url", page.URL),
				slog.Any("panic", r),
			)
			rec = models.NewErrorRecord(page.URL, sourceFile, time.Now(), fmt.Errorf("extraction panic: %v", r))
		}
	}()

	rec = s.extractor.Extract(page)
	rec.SourceFile = sourceFile
	return rec
}

func (s *Scraper) countFields(rec *models.ListingRecord) {
	for field, value := range map[string]string{
		"vin":            rec.VIN,
		"year":           rec.Year,
		"make":           rec.Make,
		"model":          rec.Model,
		"trim":           rec.Trim,
		"dealer_name":    rec.DealerName,
		"dealer_address": rec.DealerAddress,
		"full_price":     rec.FullPrice,
		"lease_monthly":  rec.LeaseMonthly,
		"stock_number":   rec.StockNumber,
		"mpg":            rec.MPG,
	} {
		if value != "" {
			s.Metrics.IncField(field)
		}
	}
}

func (s *Scraper) sourceFor(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceByURL[url]
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// pageFromResponse decomposes a fetched page into the three views the
// extractor consumes: document title, rendered text, and raw markup.
func pageFromResponse(r *colly.Response) *extract.Page {
	page := &extract.Page{
		URL:  r.Request.URL.String(),
		HTML: string(r.Body),
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		page.Text = page.HTML
		return page
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	page.Text = renderedText(doc)
	return page
}

// renderedText approximates the visible page text with block boundaries
// preserved as newlines, so line-scoped field patterns stay line-scoped.
func renderedText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	var b strings.Builder
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(sel.Text()); t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		return doc.Text()
	}
	return b.String()
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound, http.StatusGone:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case http.StatusServiceUnavailable:
			return ErrBlocked{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}

type retryManager struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics
	ctx       context.Context

	mu           sync.Mutex
	attempts     map[string]int
	timers       map[string]*time.Timer
	totalRetries int
	stopped      bool
}

func newRetryManager(collector *colly.Collector, cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		collector: collector,
		cfg:       cfg,
		attempts:  make(map[string]int),
		timers:    make(map[string]*time.Timer),
		metrics:   metrics,
		ctx:       context.Background(),
	}
}

func (rm *retryManager) Schedule(url string) bool {
	if rm.cfg.MaxRetries == 0 || url == "" {
		return false
	}

	rm.mu.Lock()

	if rm.stopped {
		rm.mu.Unlock()
		return false
	}
	if rm.ctx != nil && rm.ctx.Err() != nil {
		rm.mu.Unlock()
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(url)
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url)
	})
	rm.mu.Unlock()
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(url string) {
	if timer, ok := rm.timers[url]; ok {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) fireRetry(url string) {
	rm.mu.Lock()
	if rm.stopped {
		rm.mu.Unlock()
		return
	}
	ctx := rm.ctx
	rm.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if err := rm.collector.Visit(url); err != nil {
		slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
	}

	rm.mu.Lock()
	delete(rm.timers, url)
	rm.mu.Unlock()
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
