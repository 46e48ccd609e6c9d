// Package screening finds close approaches between a target object and a catalog.
//
// A run propagates the target once on a shared time grid, then reduces every candidate
// to its minimum separation from the target over that grid (map), keeps candidates whose
// minimum lies strictly between the floor and the alert threshold, and sorts them by
// distance then NORAD ID (reduce). Candidates are independent, so the map step runs on a
// bounded worker pool; the output order never depends on scheduling.
//
// Minimum distances are sampled minima. The continuous minimum between two samples can
// be lower, so the step size bounds how fine a miss the screener can resolve.
package screening

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/star/conjscreen/internal/metrics"
	"github.com/star/conjscreen/internal/propagation"
	"github.com/star/conjscreen/internal/timegrid"
	"github.com/star/conjscreen/internal/tle"
	"github.com/star/conjscreen/internal/transform"
)

const defaultBatchSize = 256

var tracer = otel.Tracer("github.com/star/conjscreen/internal/screening")

// Options tunes execution only; it never changes what a run returns.
type Options struct {
	Workers   int // concurrent candidate evaluations (default: runtime.NumCPU())
	BatchSize int // candidates between cancellation/progress checkpoints (default: 256)
}

// Engine runs screening passes. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	adapter   propagation.Adapter
	workers   int
	batchSize int
	logger    *slog.Logger
}

// NewEngine creates an engine that propagates through adapter.
func NewEngine(adapter propagation.Adapter, opts Options, logger *slog.Logger) *Engine {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	return &Engine{
		adapter:   adapter,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	progress ProgressFunc
}

// WithProgress registers an observer called after every batch.
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

// Validate checks 0 <= FloorKm < ThresholdKm.
func (th Thresholds) Validate() error {
	if math.IsNaN(th.FloorKm) || th.FloorKm < 0 {
		return fmt.Errorf("%w: floor must be >= 0, got %v", ErrInvalidConfiguration, th.FloorKm)
	}
	if math.IsNaN(th.ThresholdKm) || th.ThresholdKm <= th.FloorKm {
		return fmt.Errorf("%w: threshold %v must exceed floor %v", ErrInvalidConfiguration, th.ThresholdKm, th.FloorKm)
	}
	return nil
}

// ScreenCatalog resolves cfg.TargetID in entries and screens it against every other
// entry. Configuration and target errors are returned before anything is propagated.
func (e *Engine) ScreenCatalog(ctx context.Context, entries []tle.TLEEntry, cfg Config, opts ...RunOption) (*Report, error) {
	if cfg.Epoch.IsZero() {
		return nil, fmt.Errorf("%w: epoch is required", ErrInvalidConfiguration)
	}
	grid, err := timegrid.New(cfg.Epoch, cfg.Horizon, cfg.Step)
	if err != nil {
		return nil, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(entries, func(en tle.TLEEntry) bool { return en.NORADID == cfg.TargetID })
	if idx < 0 {
		metrics.IncScreeningErrors("target_not_found")
		return nil, fmt.Errorf("%w: NORAD %d", ErrTargetNotFound, cfg.TargetID)
	}

	return e.Screen(ctx, entries[idx], entries, grid, cfg.Thresholds, opts...)
}

// outcome is the map-step result for one candidate.
type outcome struct {
	minKm float64
	index int
	err   error
}

// Screen computes, for every candidate, the minimum separation from target over grid and
// returns those with th.FloorKm < distance < th.ThresholdKm, nearest first (ties by
// NORAD ID). Candidates sharing the target's NORAD ID are ignored.
//
// A candidate that cannot be propagated is counted in Report.Failures and does not stop
// the run. Failing to propagate the target is fatal. Cancellation is honored between
// batches and returns ctx's error without a partial report.
func (e *Engine) Screen(ctx context.Context, target tle.TLEEntry, candidates []tle.TLEEntry, grid timegrid.Grid, th Thresholds, opts ...RunOption) (*Report, error) {
	var ro runOptions
	for _, o := range opts {
		o(&ro)
	}

	if err := th.Validate(); err != nil {
		return nil, err
	}
	if !grid.Valid() {
		return nil, fmt.Errorf("%w: empty time grid", ErrInvalidConfiguration)
	}

	ctx, span := tracer.Start(ctx, "screening.Screen", trace.WithAttributes(
		attribute.Int("target.norad_id", target.NORADID),
		attribute.Int("grid.samples", grid.Count),
		attribute.Int("candidates", len(candidates)),
	))
	defer span.End()

	start := time.Now()

	// The target trajectory is computed once and only read afterwards.
	targetTraj, err := e.adapter.PositionsAt(target, grid)
	if err == nil {
		err = checkTrajectory(targetTraj, grid)
	}
	if err != nil {
		metrics.IncScreeningErrors("target_propagation")
		span.SetStatus(codes.Error, "target propagation failed")
		return nil, fmt.Errorf("target NORAD %d: %w", target.NORADID, err)
	}

	pending := make([]tle.TLEEntry, 0, len(candidates))
	for _, c := range candidates {
		if c.NORADID != target.NORADID {
			pending = append(pending, c)
		}
	}

	outcomes := make([]outcome, len(pending))
	for lo := 0; lo < len(pending); lo += e.batchSize {
		if err := ctx.Err(); err != nil {
			metrics.IncScreeningErrors("cancelled")
			span.SetStatus(codes.Error, "cancelled")
			return nil, fmt.Errorf("screening cancelled after %d/%d candidates: %w", lo, len(pending), err)
		}

		hi := min(lo+e.batchSize, len(pending))
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				outcomes[i] = e.evaluate(targetTraj, pending[i], grid)
				return nil
			})
		}
		_ = g.Wait()

		if ro.progress != nil {
			ro.progress(hi, len(pending))
		}
	}

	rep := &Report{
		Target:     target,
		Grid:       grid,
		Thresholds: th,
		Total:      len(pending),
		TargetPath: targetTraj,
	}
	for i, out := range outcomes {
		cand := pending[i]
		switch {
		case out.err != nil:
			rep.Failures++
			rep.FailedIDs = append(rep.FailedIDs, cand.NORADID)
			e.logger.Warn("candidate propagation failed", "norad_id", cand.NORADID, "name", cand.Name, "error", out.err)
		case out.minKm > th.FloorKm && out.minKm < th.ThresholdKm:
			rep.Accepted++
			rep.Results = append(rep.Results, Result{
				NORADID:       cand.NORADID,
				Name:          cand.Name,
				MinDistanceKm: out.minKm,
				Index:         out.index,
				Time:          grid.At(out.index),
			})
		default:
			rep.Rejected++
		}
	}

	slices.SortFunc(rep.Results, compareResults)
	rep.Duration = time.Since(start)

	metrics.RecordScreening(rep.Duration, rep.Accepted, rep.Rejected, rep.Failures)
	span.SetAttributes(
		attribute.Int("results", rep.Accepted),
		attribute.Int("failures", rep.Failures),
	)

	e.logger.Info("screening complete",
		"target_norad_id", target.NORADID,
		"candidates", rep.Total,
		"processed", rep.Processed(),
		"accepted", rep.Accepted,
		"rejected", rep.Rejected,
		"failures", rep.Failures,
		"samples", grid.Count,
		"duration_ms", rep.Duration.Milliseconds(),
	)
	return rep, nil
}

// evaluate propagates one candidate and reduces it against the target trajectory.
func (e *Engine) evaluate(targetTraj propagation.Trajectory, cand tle.TLEEntry, grid timegrid.Grid) outcome {
	traj, err := e.adapter.PositionsAt(cand, grid)
	if err != nil {
		return outcome{err: err}
	}
	if err := checkTrajectory(traj, grid); err != nil {
		return outcome{err: &propagation.Error{NORADID: cand.NORADID, Index: -1, Err: err}}
	}

	minKm, idx, err := ClosestApproach(targetTraj, traj)
	if err != nil {
		return outcome{err: &propagation.Error{NORADID: cand.NORADID, Index: idx, Err: err}}
	}
	return outcome{minKm: minKm, index: idx}
}

func checkTrajectory(traj propagation.Trajectory, grid timegrid.Grid) error {
	if len(traj) != grid.Count {
		return fmt.Errorf("trajectory has %d samples, grid has %d", len(traj), grid.Count)
	}
	for i, r := range traj {
		if !r.IsFinite() {
			return fmt.Errorf("non-finite position at sample %d", i)
		}
	}
	return nil
}

var errNonFinite = errors.New("non-finite separation")

// ClosestApproach returns the minimum separation (km) between two index-aligned
// trajectories and the earliest index at which it occurs. A NaN or infinite separation
// is an error reported at the offending index.
func ClosestApproach(a, b propagation.Trajectory) (float64, int, error) {
	if len(a) != len(b) {
		return 0, -1, fmt.Errorf("trajectory length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, -1, errors.New("empty trajectory")
	}

	// Squared distances preserve ordering; the distance is taken once at the minimum.
	best, bestIdx := math.Inf(1), -1
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		d2 := dx*dx + dy*dy + dz*dz
		if math.IsNaN(d2) || math.IsInf(d2, 0) {
			return 0, i, errNonFinite
		}
		// Strict less-than keeps the earliest index on ties.
		if d2 < best {
			best, bestIdx = d2, i
		}
	}
	return transform.Distance(a[bestIdx], b[bestIdx]), bestIdx, nil
}

func compareResults(a, b Result) int {
	if c := cmp.Compare(a.MinDistanceKm, b.MinDistanceKm); c != 0 {
		return c
	}
	return cmp.Compare(a.NORADID, b.NORADID)
}
