package screening

import (
	"time"

	"github.com/star/conjscreen/internal/propagation"
	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
)

// Defaults for a screening run.
const (
	DefaultThresholdKm = 100.0
	DefaultFloorKm     = 0.01
	DefaultHorizon     = 24 * time.Hour
	DefaultStep        = time.Minute
)

// Thresholds is the open interval (FloorKm, ThresholdKm) a minimum distance must fall in
// to be reported. A floor of 0 only drops exactly co-located samples.
type Thresholds struct {
	ThresholdKm float64
	FloorKm     float64
}

// Config is the immutable description of one run against a catalog.
type Config struct {
	TargetID int
	Thresholds
	Epoch   time.Time
	Horizon time.Duration
	Step    time.Duration
}

// Result is one reported conjunction candidate.
type Result struct {
	NORADID       int       `json:"norad_id"`
	Name          string    `json:"name"`
	MinDistanceKm float64   `json:"min_distance_km"`
	Index         int       `json:"index"`
	Time          time.Time `json:"time"`
}

// Report is the complete outcome of a run. Every candidate handed to the engine ends up
// in exactly one of Accepted, Rejected or Failures.
type Report struct {
	Target     tle.TLEEntry
	Grid       timegrid.Grid
	Thresholds Thresholds
	Results    []Result
	Total      int
	Accepted   int
	Rejected   int
	Failures   int
	FailedIDs  []int
	Duration   time.Duration

	// TargetPath is the target trajectory the run compared against.
	TargetPath propagation.Trajectory
}

// Processed returns how many candidates were evaluated, successfully or not.
func (r *Report) Processed() int {
	return r.Accepted + r.Rejected + r.Failures
}

// ProgressFunc observes run progress. It is called from a single goroutine, between
// batches, with the number of candidates finished so far.
type ProgressFunc func(done, total int)
