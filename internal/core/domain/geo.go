package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LonLat returns the point as [lon, lat], the GeoJSON order.
func (p GeoPoint) LonLat() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

// MapBounds is the visible map viewport in degrees.
type MapBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Validate checks that the bounds are finite and ordered.
func (b MapBounds) Validate() error {
	for _, v := range []float64{b.North, b.South, b.East, b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds must be finite numbers")
		}
	}
	if b.South > b.North {
		return fmt.Errorf("south (%.4f) must not exceed north (%.4f)", b.South, b.North)
	}
	if b.North > 90 || b.South < -90 {
		return fmt.Errorf("latitude bounds must be within [-90, 90]")
	}
	return nil
}

// WithinTolerance reports whether every edge of b differs from other by less
// than tol degrees.
func (b MapBounds) WithinTolerance(other MapBounds, tol float64) bool {
	return math.Abs(b.North-other.North) < tol &&
		math.Abs(b.South-other.South) < tol &&
		math.Abs(b.East-other.East) < tol &&
		math.Abs(b.West-other.West) < tol
}

// String formats the bounds with 4 decimals, as used in cache keys.
func (b MapBounds) String() string {
	return fmt.Sprintf("%.4f:%.4f:%.4f:%.4f", b.North, b.South, b.East, b.West)
}
