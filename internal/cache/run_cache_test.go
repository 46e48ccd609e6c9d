package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var epoch = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

func testGrid(t *testing.T) timegrid.Grid {
	t.Helper()
	g, err := timegrid.New(epoch, time.Hour, time.Minute)
	require.NoError(t, err)
	return g
}

func testReport(ids ...int) *screening.Report {
	rep := &screening.Report{Target: tle.TLEEntry{NORADID: 25544, Name: "ISS"}}
	for _, id := range ids {
		rep.Results = append(rep.Results, screening.Result{NORADID: id, MinDistanceKm: 10})
	}
	return rep
}

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(cfg Config, store *tle.Store) (*RunCache, *fakeClock) {
	clock := &fakeClock{now: epoch}
	c := New(cfg, store, testLogger)
	c.now = clock.Now
	return c, clock
}

func TestKey(t *testing.T) {
	g := testGrid(t)
	th := screening.Thresholds{ThresholdKm: 100, FloorKm: 0.01}

	base := Key(epoch, 25544, g, th)
	assert.Equal(t, base, Key(epoch, 25544, g, th), "deterministic")

	g2, err := timegrid.New(epoch, time.Hour, 30*time.Second)
	require.NoError(t, err)

	variants := []string{
		Key(epoch.Add(time.Second), 25544, g, th),
		Key(epoch, 44713, g, th),
		Key(epoch, 25544, g2, th),
		Key(epoch, 25544, g, screening.Thresholds{ThresholdKm: 50, FloorKm: 0.01}),
		Key(epoch, 25544, g, screening.Thresholds{ThresholdKm: 100, FloorKm: 0}),
	}
	for _, v := range variants {
		assert.NotEqual(t, base, v)
	}
}

func TestRunCacheGetPut(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute}, nil)

	_, ok := c.Get("k")
	assert.False(t, ok)

	rep := testReport(1, 2)
	c.put("k", rep)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, rep, got)

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 2, s.Results)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, epoch, s.Oldest)
}

func TestRunCacheTTL(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Minute}, nil)
	c.put("k", testReport())

	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired entries are not served")

	assert.Equal(t, 1, c.evictExpired())
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestRunCacheMaxEntries(t *testing.T) {
	c, clock := newTestCache(Config{TTL: time.Hour, MaxEntries: 2}, nil)

	c.put("a", testReport())
	clock.Advance(time.Second)
	c.put("b", testReport())
	clock.Advance(time.Second)
	c.put("c", testReport())

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestGetOrCompute(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute}, nil)

	var calls atomic.Int32
	compute := func(context.Context) (*screening.Report, error) {
		calls.Add(1)
		return testReport(7), nil
	}

	rep, cached, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 7, rep.Results[0].NORADID)

	rep2, cached, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, rep, rep2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute}, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*screening.Report, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestGetOrComputeShared(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute}, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*screening.Report, error) {
		calls.Add(1)
		<-release
		return testReport(), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestGetOrComputeCallerCancelDoesNotFailOthers(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Minute}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var runErr atomic.Value
	compute := func(ctx context.Context) (*screening.Report, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			runErr.Store(err)
			return nil, err
		}
		return testReport(9), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "k", compute)
		firstDone <- err
	}()
	<-started

	type result struct {
		rep *screening.Report
		err error
	}
	secondDone := make(chan result, 1)
	go func() {
		rep, _, err := c.GetOrCompute(context.Background(), "k", compute)
		secondDone <- result{rep, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled, "cancelled caller stops waiting")

	close(release)
	second := <-secondDone
	require.NoError(t, second.err)
	assert.Equal(t, 9, second.rep.Results[0].NORADID)
	assert.Nil(t, runErr.Load(), "shared run never saw the cancellation")

	_, ok := c.Get("k")
	assert.True(t, ok, "result cached for later callers")
}

func TestCutoverOnCatalogChange(t *testing.T) {
	store := tle.NewStore()
	store.Set(&tle.TLEDataset{Source: "test", FetchedAt: epoch})

	c, _ := newTestCache(Config{TTL: time.Hour}, store)
	c.put("a", testReport())
	c.put("b", testReport())

	c.tick()
	assert.Equal(t, 2, c.Stats().Entries, "unchanged catalog keeps entries")

	store.Set(&tle.TLEDataset{Source: "test", FetchedAt: epoch.Add(time.Hour)})
	c.tick()
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(2), c.Stats().Evictions)
	assert.False(t, c.catalogChanged())
}

func TestStartStops(t *testing.T) {
	c, _ := newTestCache(Config{TTL: time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
