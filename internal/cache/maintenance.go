package cache

import (
	"context"
	"time"
)

const minSweepInterval = time.Second

// Start runs the maintenance loop until ctx is cancelled: on every tick it drops the
// whole cache if the catalog changed, otherwise it evicts expired entries.
func (c *RunCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("run cache maintenance stopped")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *RunCache) sweepInterval() time.Duration {
	d := c.config.TTL / 2
	if d < minSweepInterval {
		d = minSweepInterval
	}
	return d
}

// tick runs one iteration of the maintenance loop.
func (c *RunCache) tick() {
	if c.catalogChanged() {
		c.performCutover()
		return
	}
	c.evictExpired()
}

// catalogChanged reports whether the store holds a dataset newer than the one the
// entries were computed against.
func (c *RunCache) catalogChanged() bool {
	if c.store == nil {
		return false
	}
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return !ds.FetchedAt.Equal(c.currentFetchedAt)
}

// performCutover drops every entry computed against the previous catalog. Keys embed
// the snapshot time so stale entries could never hit again; dropping them frees memory.
func (c *RunCache) performCutover() {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	dropped := c.replaceAll(make(map[string]*Entry))
	c.recordEvictions(dropped)

	c.logger.Info("catalog changed, run cache cleared",
		"old_dataset_fetched_at", c.currentFetchedAt.UTC().Format(time.RFC3339),
		"new_dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"entries_dropped", dropped,
	)
	c.currentFetchedAt = ds.FetchedAt
}
