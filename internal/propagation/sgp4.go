package propagation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/conjscreen/internal/transform"
)

// SGP4 library: github.com/joshuaferrara/go-satellite (pure Go, TEME output).
//
// Propagate() takes Satellite by value so SGP4 error codes never reach the caller.
// Failures are detected from the output instead: NaN/Inf or a radius outside the
// plausible Earth-orbit band. The library also takes whole seconds, so instants are
// truncated to the second.

// Plausible geocentric radius band for a propagated object, km.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// SGP4Propagator is an initialized SGP4 model for one catalog object.
// Safe for concurrent use: Propagate never mutates it.
type SGP4Propagator struct {
	sat          satellite.Satellite
	noradID      int
	line1, line2 string
}

// NewSGP4Propagator initializes SGP4 from TLE lines.
//
// Lines are validated first because go-satellite calls log.Fatal on input it cannot
// parse, which would take the whole process down.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE: %w", err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID, line1: line1, line2: line2}, nil
}

// numericFields are the column ranges go-satellite parses as plain floats.
var numericFields = []struct {
	line       int
	start, end int
	name       string
}{
	{1, 18, 32, "epoch"},
	{2, 8, 16, "inclination"},
	{2, 17, 25, "raan"},
	{2, 26, 33, "eccentricity"},
	{2, 34, 42, "argument of perigee"},
	{2, 43, 51, "mean anomaly"},
	{2, 52, 63, "mean motion"},
}

// validateTLELines checks the fixed-column layout and the numeric fields.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("catalog number mismatch: %q vs %q", line1[2:7], line2[2:7])
	}
	for _, f := range numericFields {
		line := line1
		if f.line == 2 {
			line = line2
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(line[f.start:f.end]), 64); err != nil {
			return fmt.Errorf("line%d %s %q is not numeric", f.line, f.name, line[f.start:f.end])
		}
	}
	// Mean motion must be positive or SGP4 divides by zero.
	if mm := strings.TrimSpace(line2[52:63]); strings.Trim(mm, "0.") == "" {
		return fmt.Errorf("mean motion %q is zero", mm)
	}
	return nil
}

// Propagate returns the TEME position (km) at t.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.Vec3, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	r := transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !r.IsFinite() {
		return transform.Vec3{}, fmt.Errorf("sgp4 output is NaN/Inf")
	}
	if mag := r.Norm(); mag < minRadiusKm || mag > maxRadiusKm {
		return transform.Vec3{}, fmt.Errorf("unreasonable position magnitude %.1f km", mag)
	}
	return r, nil
}
