package provenance

import (
	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/pkg/geospatial"
)

// FeatureCollection is the GeoJSON payload of the arc layer.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single arc as a GeoJSON LineString.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   LineString      `json:"geometry"`
	Properties ArcFeatureProps `json:"properties"`
}

// LineString is a GeoJSON LineString geometry.
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// ArcFeatureProps carries the rendering attributes of an arc.
type ArcFeatureProps struct {
	Key         string   `json:"key"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Count       int      `json:"count"`
	Width       float64  `json:"width"`
	DistanceKm  float64  `json:"distance_km"`
	ObjectIDs   []string `json:"object_ids"`
}

// ToGeoJSON renders arcs as a FeatureCollection for the map's set-data call.
func ToGeoJSON(arcs []domain.ClusteredArc) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(arcs))}
	for _, a := range arcs {
		ids := make([]string, 0, len(a.Members))
		for _, m := range a.Members {
			ids = append(ids, m.ID)
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: LineString{
				Type:        "LineString",
				Coordinates: [][2]float64{a.Source.LonLat(), a.Target.LonLat()},
			},
			Properties: ArcFeatureProps{
				Key:         a.Key,
				Origin:      a.OriginName,
				Destination: a.DestinationName,
				Count:       a.Count,
				Width:       ArcWidth(a.Count),
				DistanceKm:  geospatial.Haversine(a.Source.Lat, a.Source.Lon, a.Target.Lat, a.Target.Lon) / 1000,
				ObjectIDs:   ids,
			},
		})
	}
	return fc
}
