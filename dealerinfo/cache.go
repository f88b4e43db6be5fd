// Package dealerinfo caches and looks up external dealer enrichment
// (address, rating, review count, distance) keyed by dealer name.
package dealerinfo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/carhunt/go-rank-dealers/models"
)

// Status distinguishes "never looked up" from "looked up and excluded" from
// "looked up and found". The persistent form never overloads null for this.
type Status string

const (
	StatusNotLookedUp Status = "not_looked_up"
	StatusExcluded    Status = "excluded"
	StatusFound       Status = "found"
)

// Entry is one cached dealer. Info is set only for StatusFound.
type Entry struct {
	Status Status             `json:"status"`
	Info   *models.DealerInfo `json:"info,omitempty"`
}

// Complete reports whether the entry needs no further lookup. Found entries
// missing an address or driving time are partial and get re-attempted.
func (e Entry) Complete() bool {
	switch e.Status {
	case StatusExcluded:
		return true
	case StatusFound:
		return e.Info != nil && e.Info.Address != "" && e.Info.DrivingTimeMinutes != nil
	default:
		return false
	}
}

// Cache is a JSON-file-backed dealer-info store. Entries are added or
// overwritten, never deleted, and every write flushes so a partial run's
// progress survives a crash. At most one ranking run writes at a time.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Open loads the cache at path. A missing or unreadable file is treated as
// an empty cache, never as a fatal error.
func Open(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("dealer cache unreadable, starting empty",
				slog.String("path", path), slog.Any("error", err))
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		slog.Warn("dealer cache corrupt, starting empty",
			slog.String("path", path), slog.Any("error", err))
		c.entries = make(map[string]Entry)
	}
	return c
}

// Get returns the entry for a dealer. Dealers never looked up report
// StatusNotLookedUp.
func (c *Cache) Get(dealerName string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[dealerName]; ok {
		return e
	}
	return Entry{Status: StatusNotLookedUp}
}

// NeedsLookup reports whether the dealer is absent or has a partial entry.
func (c *Cache) NeedsLookup(dealerName string) bool {
	return !c.Get(dealerName).Complete()
}

// PutFound stores a successful lookup and flushes.
func (c *Cache) PutFound(dealerName string, info *models.DealerInfo) error {
	return c.put(dealerName, Entry{Status: StatusFound, Info: info})
}

// PutExcluded marks a dealer as looked up and explicitly excluded.
func (c *Cache) PutExcluded(dealerName string) error {
	return c.put(dealerName, Entry{Status: StatusExcluded})
}

// Len reports the number of cached dealers.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) put(dealerName string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dealerName] = e
	return c.flushLocked()
}

// flushLocked writes through a temp file so a crash mid-write cannot corrupt
// the existing cache.
func (c *Cache) flushLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dealer cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write dealer cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace dealer cache: %w", err)
	}
	return nil
}
