// Package history records generation runs and keeps the images they
// produced.
package history

import (
	"context"
	"fmt"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Record is one generation run.
type Record = domain.Job

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Store is a JobRepository that owns a connection.
type Store interface {
	domain.JobRepository
	Name() string
	Close() error
}

// Open picks a store from cfg: Postgres when DATABASE_URL is set, then
// SQLite when SQLITE_PATH is set, otherwise memory. Tables are created if
// missing.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		store := NewPostgresStore(infra.NewSQLRunner(pool, logger), func() error {
			pool.Close()
			return nil
		})
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case cfg.SQLitePath != "":
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		store := NewSQLiteStore(db, logger)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	default:
		return NewMemoryStore(), nil
	}
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
