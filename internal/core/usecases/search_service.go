package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

// FlyToZoom is the map zoom used after a successful place search.
const FlyToZoom = 8

const (
	geocodeTTL = 86400
	recentTTL  = 30 * 86400
)

// SearchService geocodes place names and keeps per-client recent searches.
type SearchService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
}

// NewSearchService creates a new SearchService. geocoder may be nil when no
// token is configured; Search then fails with domain.ErrMissingToken.
func NewSearchService(geocoder ports.Geocoder, cache ports.CacheService) *SearchService {
	return &SearchService{geocoder: geocoder, cache: cache}
}

// Configured reports whether a geocoder is available.
func (s *SearchService) Configured() bool {
	return s.geocoder != nil
}

// Search resolves query to at most one place. A nil result means no match.
func (s *SearchService) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if s.geocoder == nil {
		return nil, domain.ErrMissingToken
	}

	cacheKey := "geocode:" + strings.ToLower(query)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var res *domain.SearchResult
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	res, err := s.geocoder.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	// Misses are cached too; "null" decodes back to a nil result.
	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, geocodeTTL)
		}
	}
	return res, nil
}

// LoadRecent restores the recent searches of a client.
func (s *SearchService) LoadRecent(ctx context.Context, clientID string) *RecentSearches {
	var items []string
	if s.cache != nil && clientID != "" {
		if data, err := s.cache.Get(ctx, recentKey(clientID)); err == nil {
			_ = json.Unmarshal(data, &items)
		}
	}
	return NewRecentSearches(items)
}

// Remember records query in recent and persists the list.
func (s *SearchService) Remember(ctx context.Context, clientID string, recent *RecentSearches, query string) {
	recent.Add(query)
	if s.cache == nil || clientID == "" {
		return
	}
	if data, err := json.Marshal(recent.List()); err == nil {
		_ = s.cache.Set(ctx, recentKey(clientID), data, recentTTL)
	}
}

func recentKey(clientID string) string {
	return "search:recent:" + clientID
}
