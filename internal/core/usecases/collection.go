package usecases

import (
	"sync"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/provenance"
)

// ObjectCollection is the append-only set of objects received by a session.
// Objects are keyed by id and the first occurrence wins.
type ObjectCollection struct {
	mu      sync.RWMutex
	objects []domain.MuseumObject
	index   map[string]int
	version uint64
}

// NewObjectCollection creates an empty collection.
func NewObjectCollection() *ObjectCollection {
	return &ObjectCollection{index: make(map[string]int)}
}

// Merge appends objects whose id is not present yet and returns how many were
// added. The version only moves when something was added.
func (c *ObjectCollection) Merge(objects []domain.MuseumObject) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, o := range objects {
		if _, ok := c.index[o.ID]; ok {
			continue
		}
		c.index[o.ID] = len(c.objects)
		c.objects = append(c.objects, o)
		added++
	}
	if added > 0 {
		c.version++
	}
	return added
}

// Snapshot returns a copy of the current contents tagged with the version.
func (c *ObjectCollection) Snapshot() provenance.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	objects := make([]domain.MuseumObject, len(c.objects))
	copy(objects, c.objects)
	return provenance.Snapshot{Version: c.version, Objects: objects}
}

// Get returns the object with the given id.
func (c *ObjectCollection) Get(id string) (domain.MuseumObject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return domain.MuseumObject{}, false
	}
	return c.objects[i], true
}

// Len returns the number of objects.
func (c *ObjectCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// Version returns the current collection version.
func (c *ObjectCollection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
