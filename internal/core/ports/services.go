package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Geocoder resolves a place name to at most one location. A nil result with a
// nil error means no match.
type Geocoder interface {
	Search(ctx context.Context, query string) (*domain.SearchResult, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishMirrorCompleted(ctx context.Context, objects int) error
	PublishStatsRefreshed(ctx context.Context, summary *domain.StatsSummary) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
