package ports

import (
	"context"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// ObjectSource supplies museum objects and statistics. It is implemented by
// the ex-situ backend client and by the local Postgres mirror.
type ObjectSource interface {
	// FetchPage returns one page of objects inside the query bounds.
	FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error)
	// FetchStats returns per-institution object counts.
	FetchStats(ctx context.Context) ([]domain.StatRow, error)
}

// ObjectRepository persists mirrored museum objects.
type ObjectRepository interface {
	ObjectSource
	UpsertBatch(ctx context.Context, objects []domain.MuseumObject) error
	Count(ctx context.Context) (int, error)
}
