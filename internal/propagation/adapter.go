// Package propagation turns catalog entries into trajectories sampled on a time grid.
//
// Adapter is the seam the screening engine depends on; SGP4Adapter is the production
// implementation backed by go-satellite.
package propagation

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
	"github.com/star/conjscreen/internal/transform"
)

// Trajectory holds one TEME position (km) per grid index.
type Trajectory []transform.Vec3

// Adapter evaluates an object across a whole grid at once. Implementations must be safe
// for concurrent use and must use one reference frame for every object.
// Failures are reported as *Error.
type Adapter interface {
	PositionsAt(entry tle.TLEEntry, grid timegrid.Grid) (Trajectory, error)
}

// sgp4Cache holds initialized propagators for one catalog snapshot.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	props     map[int]*SGP4Propagator
	fetchedAt time.Time
}

// SGP4Adapter implements Adapter with SGP4. Objects from the snapshot passed to Prepare
// reuse their initialized model; anything else is initialized per call.
type SGP4Adapter struct {
	logger  *slog.Logger
	cache   atomic.Pointer[sgp4Cache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewSGP4Adapter creates an adapter with an empty init cache.
func NewSGP4Adapter(logger *slog.Logger) *SGP4Adapter {
	return &SGP4Adapter{logger: logger}
}

// Prepare initializes SGP4 for every entry in ds, unless the cache already holds that
// snapshot or a newer one (double-checked locking). Entries that fail to initialize are
// left out and will fail again, individually, in PositionsAt.
func (a *SGP4Adapter) Prepare(ds *tle.TLEDataset) {
	if a.preparedFor(ds) {
		return
	}

	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	if a.preparedFor(ds) {
		return
	}

	props := make(map[int]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		sp, err := NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
		if err != nil {
			a.logger.Debug("sgp4 init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		props[entry.NORADID] = sp
	}

	a.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	a.cache.Store(&sgp4Cache{props: props, fetchedAt: ds.FetchedAt})
}

func (a *SGP4Adapter) preparedFor(ds *tle.TLEDataset) bool {
	c := a.cache.Load()
	return c != nil && !ds.FetchedAt.After(c.fetchedAt)
}

// PositionsAt propagates entry to every instant of grid. The first failing sample
// aborts the object with an *Error carrying that index.
func (a *SGP4Adapter) PositionsAt(entry tle.TLEEntry, grid timegrid.Grid) (Trajectory, error) {
	sp, err := a.propagatorFor(entry)
	if err != nil {
		return nil, &Error{NORADID: entry.NORADID, Index: -1, Err: err}
	}

	traj := make(Trajectory, grid.Count)
	for i := range traj {
		r, err := sp.Propagate(grid.At(i))
		if err != nil {
			return nil, &Error{NORADID: entry.NORADID, Index: i, Err: err}
		}
		traj[i] = r
	}
	return traj, nil
}

func (a *SGP4Adapter) propagatorFor(entry tle.TLEEntry) (*SGP4Propagator, error) {
	if c := a.cache.Load(); c != nil {
		// A cached model is only valid for the exact same element set.
		if sp, ok := c.props[entry.NORADID]; ok && sp.line1 == entry.Line1 && sp.line2 == entry.Line2 {
			return sp, nil
		}
	}
	return NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
}
