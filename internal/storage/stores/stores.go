// Package stores opens the storage backend selected by configuration.
package stores

import (
	"context"
	"fmt"

	"expense-ledger/internal/config"
	"expense-ledger/internal/storage"
	"expense-ledger/internal/storage/postgres"
	"expense-ledger/internal/storage/sqlite"
)

// Open returns the store for cfg.DBDriver with migrations applied.
func Open(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	case config.DriverPostgres:
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
