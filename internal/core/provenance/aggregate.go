package provenance

import (
	"fmt"
	"math"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

const (
	// SelfLoopTolerance is the displacement in degrees (on both axes) below
	// which an object is treated as not having moved.
	SelfLoopTolerance = 0.001

	UnknownOrigin      = "Unknown Origin"
	UnknownDestination = "Unknown Destination"

	minArcWidth = 2.0
	maxArcWidth = 10.0
)

// ArcKey is the clustering key of an origin→destination pair: both
// coordinates rounded to 4 decimals (about 11 m).
func ArcKey(src, dst domain.GeoPoint) string {
	return fmt.Sprintf("%.4f,%.4f-%.4f,%.4f",
		round4(src.Lon), round4(src.Lat), round4(dst.Lon), round4(dst.Lat))
}

// round4 rounds to 4 decimals. Values that round to zero from below come
// out as +0 so they share a key with their positive neighbours.
func round4(v float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0
	}
	return r
}

// IsSelfLoop reports whether src and dst coincide within SelfLoopTolerance.
func IsSelfLoop(src, dst domain.GeoPoint) bool {
	return math.Abs(src.Lon-dst.Lon) < SelfLoopTolerance &&
		math.Abs(src.Lat-dst.Lat) < SelfLoopTolerance
}

// arcEndpoints returns the endpoints and key of an object, or ok=false when
// the object cannot produce an arc.
func arcEndpoints(o *domain.MuseumObject) (src, dst domain.GeoPoint, key string, ok bool) {
	src, okSrc := o.Origin()
	dst, okDst := o.Destination()
	if !okSrc || !okDst || IsSelfLoop(src, dst) {
		return src, dst, "", false
	}
	return src, dst, ArcKey(src, dst), true
}

// Aggregate groups objects into unique arcs. Arcs come out in the order their
// key was first seen. Ineligible objects are skipped, so callers may pass the
// raw collection as well as a normalized one.
func Aggregate(objects []domain.MuseumObject) []domain.ClusteredArc {
	index := make(map[string]int)
	var arcs []domain.ClusteredArc

	for i := range objects {
		o := &objects[i]
		src, dst, key, ok := arcEndpoints(o)
		if !ok {
			continue
		}

		pos, seen := index[key]
		if !seen {
			pos = len(arcs)
			index[key] = pos
			arcs = append(arcs, domain.ClusteredArc{
				Key:             key,
				Source:          src,
				Target:          dst,
				OriginName:      originName(o),
				DestinationName: destinationName(o),
			})
		}
		arcs[pos].Count++
		arcs[pos].Members = append(arcs[pos].Members, o)
	}
	return arcs
}

// UniqueArcCount counts distinct arc keys without building arcs.
func UniqueArcCount(objects []domain.MuseumObject) int {
	keys := make(map[string]struct{})
	for i := range objects {
		if _, _, key, ok := arcEndpoints(&objects[i]); ok {
			keys[key] = struct{}{}
		}
	}
	return len(keys)
}

// ArcWidth is the rendered line width for an arc with count members:
// 2 + count/2, clamped to [2, 10].
func ArcWidth(count int) float64 {
	w := minArcWidth + float64(count)/2
	return math.Max(minArcWidth, math.Min(maxArcWidth, w))
}

func originName(o *domain.MuseumObject) string {
	for _, n := range []string{o.PlaceName, o.City, o.Country} {
		if n != "" {
			return n
		}
	}
	return UnknownOrigin
}

func destinationName(o *domain.MuseumObject) string {
	if o.Institution.Name != "" {
		return o.Institution.Name
	}
	return UnknownDestination
}
