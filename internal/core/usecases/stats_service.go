package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

const (
	statsCacheKey = "stats:summary"
	statsTTL      = 300
)

// StatsService serves the grouped statistics panel.
type StatsService struct {
	source    ports.ObjectSource
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewStatsService creates a new StatsService. cache and publisher may be nil.
func NewStatsService(source ports.ObjectSource, cache ports.CacheService, publisher ports.EventPublisher) *StatsService {
	return &StatsService{source: source, cache: cache, publisher: publisher}
}

// Summary returns the grouped statistics, from cache when fresh.
func (s *StatsService) Summary(ctx context.Context) (*domain.StatsSummary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey); err == nil {
			var summary domain.StatsSummary
			if err := json.Unmarshal(data, &summary); err == nil {
				metrics.CacheHits.WithLabelValues("stats").Inc()
				return &summary, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("stats").Inc()
	}
	return s.load(ctx)
}

// Refresh reloads the statistics, rewrites the cache and announces the new
// summary.
func (s *StatsService) Refresh(ctx context.Context) (*domain.StatsSummary, error) {
	summary, err := s.load(ctx)
	if err != nil {
		metrics.StatsRefreshErrors.Inc()
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishStatsRefreshed(ctx, summary); err != nil {
			slog.Warn("publish stats refreshed", "error", err)
		}
	}
	return summary, nil
}

func (s *StatsService) load(ctx context.Context) (*domain.StatsSummary, error) {
	rows, err := s.source.FetchStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	summary := provenance.GroupStats(rows)

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, statsCacheKey, data, statsTTL)
		}
	}
	return &summary, nil
}
