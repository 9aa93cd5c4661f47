// Package provenance turns museum object records into renderable provenance
// arcs, grouped statistics and exports.
package provenance

import "github.com/samirrijal/exsitu/internal/core/domain"

// Normalize returns the arc-eligible objects, preserving order. Records with a
// missing or non-finite coordinate are dropped without error; the backend is
// known to ship partial records.
func Normalize(objects []domain.MuseumObject) []domain.MuseumObject {
	out := make([]domain.MuseumObject, 0, len(objects))
	for i := range objects {
		if objects[i].ArcEligible() {
			out = append(out, objects[i])
		}
	}
	return out
}
