package geospatial

import (
	"math"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundsAround returns the viewport of the given radius around a point.
// Longitude is clamped to [-180, 180] and latitude to [-90, 90].
func BoundsAround(center domain.GeoPoint, radiusMeters float64) domain.MapBounds {
	latDelta := radiusMeters / 111320.0
	cos := math.Cos(toRad(center.Lat))
	lonDelta := 180.0
	if cos > 1e-9 {
		lonDelta = radiusMeters / (111320.0 * cos)
	}

	return domain.MapBounds{
		North: math.Min(90, center.Lat+latDelta),
		South: math.Max(-90, center.Lat-latDelta),
		East:  math.Min(180, center.Lon+lonDelta),
		West:  math.Max(-180, center.Lon-lonDelta),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
