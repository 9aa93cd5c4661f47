package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

// WorldBounds covers the whole map.
var WorldBounds = domain.MapBounds{North: 90, South: -90, East: 180, West: -180}

// MirrorReport summarizes a mirror run.
type MirrorReport struct {
	Pages       int `json:"pages"`
	FailedPages int `json:"failed_pages"`
	Stored      int `json:"stored"`
	Total       int `json:"total"`
}

// MirrorService copies objects from the remote backend into the local
// Postgres mirror.
type MirrorService struct {
	remote      ports.ObjectSource
	repo        ports.ObjectRepository
	publisher   ports.EventPublisher
	pageSize    int
	concurrency int
}

// NewMirrorService creates a new MirrorService. publisher may be nil.
func NewMirrorService(remote ports.ObjectSource, repo ports.ObjectRepository, publisher ports.EventPublisher, pageSize int) *MirrorService {
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	return &MirrorService{
		remote:      remote,
		repo:        repo,
		publisher:   publisher,
		pageSize:    pageSize,
		concurrency: 4,
	}
}

// MirrorPage copies one page and returns the number of objects stored along
// with the backend's page count and total.
func (s *MirrorService) MirrorPage(ctx context.Context, bounds domain.MapBounds, page int) (stored, pageCount, total int, err error) {
	p, err := s.remote.FetchPage(ctx, domain.ObjectQuery{Bounds: bounds, Page: page, PageSize: s.pageSize})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("fetch page %d: %w", page, err)
	}
	if len(p.Objects) > 0 {
		if err := s.repo.UpsertBatch(ctx, p.Objects); err != nil {
			return 0, 0, 0, fmt.Errorf("store page %d: %w", page, err)
		}
	}
	metrics.MirrorObjectsStored.Add(float64(len(p.Objects)))
	return len(p.Objects), p.PageCount, p.Total, nil
}

// Run mirrors every page inside bounds. Page 1 is fetched first to learn the
// page count; the rest are downloaded with bounded concurrency. Failed pages
// are logged and counted, and Run only fails when nothing could be stored.
func (s *MirrorService) Run(ctx context.Context, bounds domain.MapBounds) (*MirrorReport, error) {
	stored, pageCount, total, err := s.MirrorPage(ctx, bounds, 1)
	if err != nil {
		return nil, err
	}
	report := &MirrorReport{Pages: 1, Stored: stored, Total: total}
	slog.Info("mirror started", "pages", pageCount, "total", total)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	sem := make(chan struct{}, s.concurrency)

	for page := 2; page <= pageCount; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, _, _, err := s.MirrorPage(ctx, bounds, page)

			mu.Lock()
			defer mu.Unlock()
			report.Pages++
			if err != nil {
				report.FailedPages++
				errs = append(errs, err)
				slog.Error("mirror page failed", "page", page, "error", err)
				return
			}
			report.Stored += n
		}(page)
	}
	wg.Wait()

	if report.Stored == 0 && len(errs) > 0 {
		return report, errors.Join(errs...)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMirrorCompleted(ctx, report.Stored); err != nil {
			slog.Warn("publish mirror completed", "error", err)
		}
	}
	slog.Info("mirror complete", "stored", report.Stored, "failed_pages", report.FailedPages)
	return report, nil
}
