package provenance

import (
	"sync"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// Snapshot is an immutable view of an object collection. Version identifies
// the collection state: equal versions mean equal contents.
type Snapshot struct {
	Version uint64
	Objects []domain.MuseumObject
}

// ArcCache memoizes Aggregate on the snapshot version. Arcs are rebuilt from
// scratch whenever the version changes.
type ArcCache struct {
	mu      sync.Mutex
	version uint64
	valid   bool
	arcs    []domain.ClusteredArc
}

// Arcs returns the arcs of snap, recomputing only when its version differs
// from the cached one.
func (c *ArcCache) Arcs(snap Snapshot) []domain.ClusteredArc {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.version == snap.Version {
		return c.arcs
	}
	c.arcs = Aggregate(snap.Objects)
	c.version = snap.Version
	c.valid = true
	return c.arcs
}
