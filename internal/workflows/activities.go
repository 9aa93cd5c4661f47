package workflows

import (
	"context"
	"log/slog"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

// PageResult is the outcome of mirroring one backend page.
type PageResult struct {
	Stored    int
	PageCount int
	Total     int
}

// MirrorActivities holds the activity implementations for the mirror workflow.
type MirrorActivities struct {
	Mirror    *usecases.MirrorService
	Publisher ports.EventPublisher
}

// MirrorPage copies one backend page into the local store.
func (a *MirrorActivities) MirrorPage(ctx context.Context, bounds domain.MapBounds, page int) (*PageResult, error) {
	stored, pageCount, total, err := a.Mirror.MirrorPage(ctx, bounds, page)
	if err != nil {
		return nil, err
	}
	return &PageResult{Stored: stored, PageCount: pageCount, Total: total}, nil
}

// PublishCompleted announces a finished mirror run.
func (a *MirrorActivities) PublishCompleted(ctx context.Context, stored int) error {
	if a.Publisher == nil {
		slog.Info("mirror completed (no publisher)", "objects", stored)
		return nil
	}
	return a.Publisher.PublishMirrorCompleted(ctx, stored)
}
