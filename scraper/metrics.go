package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the listing scraper.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	ListingsTotal        prometheus.Counter
	FieldsExtractedTotal *prometheus.CounterVec
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_requests_total",
			Help: "Total HTTP requests issued for listing pages.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_request_duration_seconds",
			Help:    "HTTP request latency for listing page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_extracted_total",
			Help: "Total number of listing records sent to the pipeline.",
		},
	)
	fields := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_fields_extracted_total",
			Help: "Successful field extractions by field name.",
		},
		[]string{"field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, listings, fields, retries, errorsTotal)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ListingsTotal:        listings,
		FieldsExtractedTotal: fields,
		RetriesTotal:         retries,
		ErrorsTotal:          errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncListings increments the extracted listings counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsTotal.Inc()
}

// IncField increments the per-field extraction counter.
func (m *Metrics) IncField(field string) {
	if m == nil {
		return
	}
	m.FieldsExtractedTotal.WithLabelValues(field).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
