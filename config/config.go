// Package config holds runtime configuration for the scrape and rank
// commands.
package config

import (
	"fmt"
	"time"

	"github.com/carhunt/go-rank-dealers/rank"
)

// Config holds scraper and ranking configuration.
type Config struct {
	// Fetching.
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	UserAgent        string
	RespectRobotsTxt bool

	// Output.
	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool

	// Ranking.
	Origin              string
	ExcludeAddress      string
	MaybeFarAddress     string
	CutoffMinutes       float64
	KeepUnknownDistance bool
	CacheFile           string
	Weights             rank.Weights
}

// DefaultConfig returns conservative defaults for listing pages.
func DefaultConfig() *Config {
	return &Config{
		Parallelism:      4,
		Delay:            500 * time.Millisecond,
		RandomDelay:      500 * time.Millisecond,
		Timeout:          15 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,

		OutputFile:   "output/listings.csv",
		OutputFormat: "csv",
		MetricsAddr:  "",
		Verbose:      false,

		Origin:          "White Plains, NY 10601",
		ExcludeAddress:  "229 N Franklin St, Hempstead, NY 11550",
		MaybeFarAddress: "236 W Fordham Rd, Bronx, NY 10468",
		CutoffMinutes:   30,
		CacheFile:       "output/dealer_cache.json",
		Weights:         rank.DefaultWeights,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CutoffMinutes <= 0 {
		return fmt.Errorf("cutoff minutes must be positive")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return nil
}
