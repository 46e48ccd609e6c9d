// Package cache memoizes screening reports.
//
// A report is keyed by everything that determines it: the catalog snapshot, the target,
// the time grid and the thresholds. Entries expire after a TTL and the whole cache is
// dropped when the catalog store receives a new dataset.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/star/conjscreen/internal/metrics"
	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
)

// Config bounds the cache.
type Config struct {
	TTL        time.Duration // Entry lifetime (default: 15m)
	MaxEntries int           // Oldest entries are evicted beyond this; 0 means unbounded
}

// Entry wraps a report with generation metadata.
type Entry struct {
	Report      *screening.Report
	GeneratedAt time.Time
}

// RunCache is an in-memory cache of screening reports.
// Safe for concurrent use by multiple goroutines.
type RunCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	config Config
	store  *tle.Store
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group

	// Dataset the entries were computed against, for change detection.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a run cache. store may be nil, in which case catalog changes are not
// watched.
func New(config Config, store *tle.Store, logger *slog.Logger) *RunCache {
	logger.Info("run cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)

	c := &RunCache{
		entries: make(map[string]*Entry),
		config:  config,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
	if store != nil {
		if ds := store.Get(); ds != nil {
			c.currentFetchedAt = ds.FetchedAt
		}
	}
	return c
}

// Key builds the deterministic memoization key for a run.
func Key(fetchedAt time.Time, targetID int, grid timegrid.Grid, th screening.Thresholds) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(fetchedAt.UnixNano(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(targetID))
	b.WriteByte('|')
	b.WriteString(grid.Key())
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(th.ThresholdKm, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(th.FloorKm, 'g', -1, 64))
	return b.String()
}

// Get returns the cached report for key, or false if absent or expired.
func (c *RunCache) Get(key string) (*screening.Report, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !c.expired(entry, c.now()) {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.Report, true
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil, false
}

// GetOrCompute returns the cached report for key, or runs compute and caches a
// successful result. Concurrent callers for the same key share one computation.
// The boolean reports whether the result came from the cache.
//
// The shared computation runs on a context detached from any caller's cancellation, so
// one caller giving up never fails the others; compute must bound its own runtime. A
// caller whose ctx ends stops waiting and gets ctx's error.
func (c *RunCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (*screening.Report, error)) (*screening.Report, bool, error) {
	if rep, ok := c.Get(key); ok {
		return rep, true, nil
	}

	runCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		rep, err := compute(runCtx)
		if err != nil {
			return nil, err
		}
		c.put(key, rep)
		return rep, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*screening.Report), false, nil
	}
}

// put stores a report. Caller must not hold mu.
func (c *RunCache) put(key string, rep *screening.Report) {
	entry := &Entry{Report: rep, GeneratedAt: c.now()}

	c.mu.Lock()
	c.entries[key] = entry
	evicted := c.trimLocked()
	c.mu.Unlock()

	c.recordEvictions(evicted)
	c.updateMetrics()
}

// trimLocked drops the oldest entries beyond MaxEntries. Caller must hold mu.
func (c *RunCache) trimLocked() int {
	if c.config.MaxEntries <= 0 {
		return 0
	}
	removed := 0
	for len(c.entries) > c.config.MaxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.GeneratedAt.Before(oldest) {
				oldestKey, oldest = k, e.GeneratedAt
			}
		}
		delete(c.entries, oldestKey)
		removed++
	}
	return removed
}

func (c *RunCache) expired(e *Entry, now time.Time) bool {
	return c.config.TTL > 0 && now.Sub(e.GeneratedAt) >= c.config.TTL
}

// evictExpired removes entries older than the TTL.
func (c *RunCache) evictExpired() int {
	now := c.now()
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("run cache eviction", "entries_removed", removed)
	}
	return removed
}

// replaceAll atomically replaces all cache entries.
func (c *RunCache) replaceAll(newEntries map[string]*Entry) int {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = newEntries
	c.mu.Unlock()
	c.updateMetrics()
	return dropped
}

func (c *RunCache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.evictions.Add(int64(n))
	metrics.AddCacheEvictions(n)
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries   int       `json:"entries"`
	Results   int       `json:"results"`
	Oldest    time.Time `json:"oldest,omitzero"`
	Newest    time.Time `json:"newest,omitzero"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
}

// Stats returns current cache statistics.
func (c *RunCache) Stats() Stats {
	var s Stats

	c.mu.RLock()
	s.Entries = len(c.entries)
	for _, e := range c.entries {
		s.Results += len(e.Report.Results)
		if s.Oldest.IsZero() || e.GeneratedAt.Before(s.Oldest) {
			s.Oldest = e.GeneratedAt
		}
		if s.Newest.IsZero() || e.GeneratedAt.After(s.Newest) {
			s.Newest = e.GeneratedAt
		}
	}
	c.mu.RUnlock()

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Evictions = c.evictions.Load()
	return s
}

// updateMetrics publishes current cache size to Prometheus.
func (c *RunCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}
