package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJulianDateJ2000(t *testing.T) {
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.InDelta(t, j2000, jd, 1e-9)
}

func TestJulianDateSubSecond(t *testing.T) {
	base := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	half := base.Add(500 * time.Millisecond)
	assert.InDelta(t, 0.5/86400.0, JulianDate(half)-JulianDate(base), 1e-9)
}

func TestGMSTRange(t *testing.T) {
	start := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	for i := range 48 {
		g := GMST(start.Add(time.Duration(i) * 30 * time.Minute))
		assert.GreaterOrEqual(t, g, 0.0)
		assert.Less(t, g, 2*math.Pi)
	}
}

// Rotation into ECEF must not change separations between two objects.
func TestTEMEToECEFPreservesDistance(t *testing.T) {
	at := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	a := Vec3{X: 6778, Y: 120, Z: -40}
	b := Vec3{X: 6700, Y: 900, Z: 300}

	want := Distance(a, b) * 1000.0
	got := Distance(TEMEToECEF(a, at), TEMEToECEF(b, at))
	assert.InDelta(t, want, got, 1e-6)
}

func TestECEFToGeodeticEquator(t *testing.T) {
	p := ECEFToGeodetic(wgs84A+400000, 0, 0)
	assert.InDelta(t, 0, p.LatDeg, 1e-9)
	assert.InDelta(t, 0, p.LonDeg, 1e-9)
	assert.InDelta(t, 400000, p.AltM, 1e-3)
}

func TestECEFToGeodeticPole(t *testing.T) {
	polar := wgs84A * (1 - wgs84F)
	p := ECEFToGeodetic(0, 0, polar+1000)
	assert.InDelta(t, 90, p.LatDeg, 1e-6)
	assert.InDelta(t, 1000, p.AltM, 1e-3)
}

func TestVec3IsFinite(t *testing.T) {
	assert.True(t, Vec3{X: 1, Y: 2, Z: 3}.IsFinite())
	assert.False(t, Vec3{X: math.NaN()}.IsFinite())
	assert.False(t, Vec3{Z: math.Inf(-1)}.IsFinite())
}
