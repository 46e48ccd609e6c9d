package propagation

import (
	"errors"
	"fmt"
)

// ErrPropagation matches every *Error via errors.Is.
var ErrPropagation = errors.New("propagation error")

// Error reports that an object could not be propagated across a grid: malformed or
// expired elements, SGP4 init failure, or numerical divergence at some sample.
type Error struct {
	NORADID int
	Index   int // grid index that failed, -1 when initialization failed
	Err     error
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("propagate NORAD %d: %v", e.NORADID, e.Err)
	}
	return fmt.Sprintf("propagate NORAD %d at sample %d: %v", e.NORADID, e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPropagation) true for any *Error.
func (e *Error) Is(target error) bool { return target == ErrPropagation }
