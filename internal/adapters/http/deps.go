package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/exsitu/internal/adapters/postgres"
	"github.com/samirrijal/exsitu/internal/adapters/valkey"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Objects    *usecases.ObjectService
	Stats      *usecases.StatsService
	Search     *usecases.SearchService
	SyncConfig usecases.SyncConfig
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}
