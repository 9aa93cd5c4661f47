package usecases

import (
	"context"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

// Session is the state of one connected map client: its object collection,
// the arcs derived from it, its recent searches and the viewport controller
// feeding it.
type Session struct {
	ID      string
	Objects *ObjectCollection
	Recent  *RecentSearches
	Sync    *ViewportSync

	arcs   provenance.ArcCache
	search *SearchService
}

// NewSession creates a session for clientID. onUpdate receives every
// settled fetch; use Session.Arcs inside it to read the derived arcs.
func NewSession(ctx context.Context, clientID string, source ports.ObjectSource, search *SearchService, cfg SyncConfig, onUpdate func(SyncUpdate)) *Session {
	s := &Session{
		ID:      clientID,
		Objects: NewObjectCollection(),
		search:  search,
	}
	if search != nil {
		s.Recent = search.LoadRecent(ctx, clientID)
	} else {
		s.Recent = NewRecentSearches(nil)
	}
	s.Sync = NewViewportSync(source, s.Objects, cfg, onUpdate)
	return s
}

// Run drives the viewport controller until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	return s.Sync.Run(ctx)
}

// Arcs returns the arcs of snap, recomputed only when the collection changed.
func (s *Session) Arcs(snap provenance.Snapshot) []domain.ClusteredArc {
	arcs := s.arcs.Arcs(snap)
	metrics.ArcsAggregated.Observe(float64(len(arcs)))
	return arcs
}

// CurrentArcs returns the arcs of the collection as it is now.
func (s *Session) CurrentArcs() []domain.ClusteredArc {
	return s.Arcs(s.Objects.Snapshot())
}

// Search geocodes query and, on a match, records it in the recent list.
func (s *Session) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	if s.search == nil {
		return nil, domain.ErrMissingToken
	}
	res, err := s.search.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if res != nil {
		s.search.Remember(ctx, s.ID, s.Recent, query)
	}
	return res, nil
}
