// Package timegrid builds the evenly spaced sample instants shared by every object in a
// screening run. Distances are only comparable between trajectories sampled on the
// same grid, so a Grid is a value: equal inputs always give an equal Grid.
package timegrid

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is returned for a non-positive horizon or step.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Grid covers [Epoch, Epoch+Count*Step) at a fixed step.
type Grid struct {
	Epoch time.Time
	Step  time.Duration
	Count int
}

// New returns the grid starting at epoch and covering [epoch, epoch+horizon).
// Count is ceil(horizon/step), which equals horizon/step whenever step divides horizon.
func New(epoch time.Time, horizon, step time.Duration) (Grid, error) {
	if step <= 0 {
		return Grid{}, fmt.Errorf("%w: step must be positive, got %s", ErrInvalidConfiguration, step)
	}
	if horizon <= 0 {
		return Grid{}, fmt.Errorf("%w: horizon must be positive, got %s", ErrInvalidConfiguration, horizon)
	}

	count := int(horizon / step)
	if horizon%step != 0 {
		count++
	}

	return Grid{
		Epoch: epoch.UTC(),
		Step:  step,
		Count: count,
	}, nil
}

// At returns the instant for grid index i.
func (g Grid) At(i int) time.Time {
	return g.Epoch.Add(time.Duration(i) * g.Step)
}

// End returns the exclusive upper bound of the grid.
func (g Grid) End() time.Time {
	return g.At(g.Count)
}

// Horizon returns the span covered by the grid.
func (g Grid) Horizon() time.Duration {
	return time.Duration(g.Count) * g.Step
}

// Valid reports whether g could have come from New.
func (g Grid) Valid() bool {
	return g.Step > 0 && g.Count > 0
}

// Key returns a stable identifier for memoizing runs computed on this grid.
func (g Grid) Key() string {
	return fmt.Sprintf("%d/%d/%d", g.Epoch.UnixNano(), int64(g.Step), g.Count)
}
