// Package store selects the repository backend named by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tierrun/internal/config"
	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence/memory"
	"example.com/tierrun/internal/persistence/postgres"
	"example.com/tierrun/internal/persistence/sqlite"
)

// Backend is an opened repository. Pool is only set for postgres, which is the
// one backend with an outbox to dispatch.
type Backend struct {
	Repository domain.Repository
	Pool       *pgxpool.Pool
	close      func()
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured driver and applies migrations.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Backend{Repository: postgres.NewRepository(pool), Pool: pool, close: pool.Close}, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Repository: db, close: func() { _ = db.Close() }}, nil
	case config.StoreMemory:
		return &Backend{Repository: memory.NewRepository()}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
