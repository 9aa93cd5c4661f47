package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

const (
	objectPageTTL = 300

	// MaxPageSize is the largest page the backend serves. Bulk reads
	// (arcs, CSV export) page at this size to keep round trips down.
	MaxPageSize     = 100
	defaultPageSize = 50
)

// ObjectService reads object pages from a source through the cache. It
// implements ports.ObjectSource so sessions can use it in place of the raw
// source.
type ObjectService struct {
	source   ports.ObjectSource
	cache    ports.CacheService
	maxPages int
}

// NewObjectService creates a new ObjectService. maxPages bounds FetchAll.
func NewObjectService(source ports.ObjectSource, cache ports.CacheService, maxPages int) *ObjectService {
	if maxPages <= 0 {
		maxPages = 20
	}
	return &ObjectService{source: source, cache: cache, maxPages: maxPages}
}

// FetchPage returns one page of objects inside the query bounds.
func (s *ObjectService) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	if err := q.Bounds.Validate(); err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > MaxPageSize {
		q.PageSize = defaultPageSize
	}

	cacheKey := fmt.Sprintf("objects:%s:%d:%d", q.Bounds, q.Page, q.PageSize)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page domain.ObjectPage
			if err := json.Unmarshal(data, &page); err == nil {
				metrics.CacheHits.WithLabelValues("objects").Inc()
				return &page, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("objects").Inc()
	}

	page, err := s.source.FetchPage(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch objects page %d: %w", q.Page, err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(page); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, objectPageTTL)
		}
	}
	return page, nil
}

// FetchStats passes through to the source; StatsService owns stats caching.
func (s *ObjectService) FetchStats(ctx context.Context) ([]domain.StatRow, error) {
	return s.source.FetchStats(ctx)
}

// FetchAll pages through every object inside bounds, stopping at maxPages.
// The returned total is the backend's count, which can exceed len(objects)
// when the page limit is reached.
func (s *ObjectService) FetchAll(ctx context.Context, bounds domain.MapBounds, pageSize int) ([]domain.MuseumObject, int, error) {
	var (
		objects []domain.MuseumObject
		total   int
	)
	for page := 1; page <= s.maxPages; page++ {
		p, err := s.FetchPage(ctx, domain.ObjectQuery{Bounds: bounds, Page: page, PageSize: pageSize})
		if err != nil {
			return nil, 0, err
		}
		objects = append(objects, p.Objects...)
		total = p.Total
		if page >= p.PageCount {
			break
		}
	}
	return objects, total, nil
}

// Arcs aggregates every arc-eligible object inside bounds.
func (s *ObjectService) Arcs(ctx context.Context, bounds domain.MapBounds) ([]domain.ClusteredArc, error) {
	objects, _, err := s.FetchAll(ctx, bounds, MaxPageSize)
	if err != nil {
		return nil, err
	}
	arcs := provenance.Aggregate(provenance.Normalize(objects))
	metrics.ArcsAggregated.Observe(float64(len(arcs)))
	return arcs, nil
}
