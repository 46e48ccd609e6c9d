// Package transform holds the small amount of frame geometry the screener needs.
//
// Conjunction distances are computed directly in TEME (the frame SGP4 emits) since a
// rotation shared by both objects leaves separations unchanged. The TEME → ECEF rotation
// and the geodetic conversion exist only to describe where a closest approach happens
// (the sub-satellite point under the target at that instant).
//
// The rotation uses GMST only (TEME → PEF ≈ ECEF), ignoring polar motion and the
// equation of the equinoxes. Error is tens of meters, far below screening resolution.
package transform

import (
	"math"
	"time"
)

// Vec3 is a Cartesian vector. Units depend on context: km for TEME positions,
// meters for ECEF positions.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Scale returns v multiplied by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// IsFinite reports whether every component is neither NaN nor ±Inf.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Distance returns |a - b|.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// TEMEToECEF rotates a TEME position (km) into ECEF at the given UTC instant.
// The result is in meters.
func TEMEToECEF(teme Vec3, t time.Time) Vec3 {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST applies r_ECEF = R3(θ) * r_TEME for a precomputed GMST angle θ,
// converting km to meters.
func TEMEToECEFWithGMST(teme Vec3, gmst float64) Vec3 {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return Vec3{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}.Scale(1000.0)
}

// SubPoint returns the geodetic point directly beneath a TEME position at time t.
func SubPoint(teme Vec3, t time.Time) GeodeticPoint {
	ecef := TEMEToECEF(teme, t)
	return ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
}
