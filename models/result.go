package models

import "time"

// ScrapeResult holds the overall outcome of one scraping run.
type ScrapeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}

// Duration is the wall-clock time of the run.
func (r *ScrapeResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// SuccessRate is the share of requests that completed without error, in
// percent. Zero requests reports zero.
func (r *ScrapeResult) SuccessRate() float64 {
	if r.RequestCount == 0 {
		return 0
	}
	return float64(r.RequestCount-r.ErrorCount) / float64(r.RequestCount) * 100
}
