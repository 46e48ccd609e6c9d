package screening

import (
	"errors"

	"github.com/star/conjscreen/internal/timegrid"
)

var (
	// ErrInvalidConfiguration covers bad grid parameters and bad thresholds.
	// It is the same sentinel timegrid returns, so one errors.Is check covers both.
	ErrInvalidConfiguration = timegrid.ErrInvalidConfiguration

	// ErrTargetNotFound means the target ID is not in the supplied catalog.
	ErrTargetNotFound = errors.New("target not found")
)
