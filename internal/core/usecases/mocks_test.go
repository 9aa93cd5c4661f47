package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
)

// --- Mock ObjectSource ---

type mockObjectSource struct {
	fetchPageFn  func(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error)
	fetchStatsFn func(ctx context.Context) ([]domain.StatRow, error)

	mu      sync.Mutex
	queries []domain.ObjectQuery
}

func (m *mockObjectSource) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.fetchPageFn != nil {
		return m.fetchPageFn(ctx, q)
	}
	return &domain.ObjectPage{Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockObjectSource) FetchStats(ctx context.Context) ([]domain.StatRow, error) {
	if m.fetchStatsFn != nil {
		return m.fetchStatsFn(ctx)
	}
	return nil, nil
}

func (m *mockObjectSource) calls() []domain.ObjectQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ObjectQuery, len(m.queries))
	copy(out, m.queries)
	return out
}

// --- Mock ObjectRepository ---

type mockObjectRepo struct {
	mockObjectSource
	upsertBatchFn func(ctx context.Context, objects []domain.MuseumObject) error

	stored sync.Map
}

func (m *mockObjectRepo) UpsertBatch(ctx context.Context, objects []domain.MuseumObject) error {
	if m.upsertBatchFn != nil {
		if err := m.upsertBatchFn(ctx, objects); err != nil {
			return err
		}
	}
	for _, o := range objects {
		m.stored.Store(o.ID, o)
	}
	return nil
}

func (m *mockObjectRepo) Count(ctx context.Context) (int, error) {
	n := 0
	m.stored.Range(func(_, _ any) bool { n++; return true })
	return n, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttl: make(map[string]int)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string) (*domain.SearchResult, error)
	calls    int
}

func (m *mockGeocoder) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	m.calls++
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu             sync.Mutex
	mirrorObjects  []int
	statsPublished int
}

func (m *mockPublisher) PublishMirrorCompleted(ctx context.Context, objects int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorObjects = append(m.mirrorObjects, objects)
	return nil
}

func (m *mockPublisher) PublishStatsRefreshed(ctx context.Context, summary *domain.StatsSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsPublished++
	return nil
}

// --- Fixtures ---

func object(id string, srcLon, srcLat, dstLon, dstLat float64) domain.MuseumObject {
	return domain.MuseumObject{
		ID:        id,
		Title:     "Object " + id,
		Longitude: domain.Float(srcLon),
		Latitude:  domain.Float(srcLat),
		Institution: domain.Institution{
			Name:      "Pitt Rivers Museum",
			Longitude: domain.Float(dstLon),
			Latitude:  domain.Float(dstLat),
		},
	}
}

var oxford = domain.MapBounds{North: 52, South: 51, East: -1, West: -2}
