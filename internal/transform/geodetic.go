package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// GeodeticPoint is latitude/longitude in degrees and altitude in meters above the ellipsoid.
type GeodeticPoint struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates (Bowring iteration;
// a handful of passes converges for anything in Earth orbit).
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-wgs84E2))

	var n float64
	for range 5 {
		s := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*s*s)
		lat = math.Atan2(z+wgs84E2*n*s, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	alt := math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: math.Atan2(y, x) * 180.0 / math.Pi,
		AltM:   alt,
	}
}
