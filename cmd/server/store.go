package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xtding233/banner-gacha/internal/config"
	"github.com/xtding233/banner-gacha/internal/store"
	"github.com/xtding233/banner-gacha/internal/store/postgres"
	"github.com/xtding233/banner-gacha/internal/store/sqlite"
)

// openStore picks Postgres, then SQLite, then memory, by which setting is present.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMaxIdleTime, cfg.DBMaxLifetime)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		st, err := postgres.New(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("Using postgres store")
		return st, nil
	case cfg.SQLitePath != "":
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("Using sqlite store", "path", cfg.SQLitePath)
		return st, nil
	default:
		slog.Warn("No database configured; state is kept in memory")
		return store.NewMemory(), nil
	}
}
