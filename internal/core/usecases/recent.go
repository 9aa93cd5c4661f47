package usecases

import (
	"strings"
	"sync"
)

// MaxRecentSearches is the length of the recent search list.
const MaxRecentSearches = 5

// RecentSearches is a most-recently-used list of search terms.
type RecentSearches struct {
	mu    sync.Mutex
	items []string
}

// NewRecentSearches seeds the list, keeping its MRU invariants.
func NewRecentSearches(items []string) *RecentSearches {
	r := &RecentSearches{}
	for i := len(items) - 1; i >= 0; i-- {
		r.Add(items[i])
	}
	return r
}

// Add moves q to the front. Blank terms are ignored and the list is capped
// at MaxRecentSearches.
func (r *RecentSearches) Add(q string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]string, 0, MaxRecentSearches)
	items = append(items, q)
	for _, it := range r.items {
		if it == q {
			continue
		}
		if len(items) == MaxRecentSearches {
			break
		}
		items = append(items, it)
	}
	r.items = items
}

// List returns the terms, most recent first.
func (r *RecentSearches) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}
