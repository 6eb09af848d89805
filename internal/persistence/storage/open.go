// Package storage opens the entry and profile stores selected by
// configuration.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence/memory"
	"example.com/ecotrack/internal/persistence/postgres"
	"example.com/ecotrack/internal/persistence/sqlite"
)

// Backend bundles the opened repositories. Pool is set only for the
// postgres driver, which is the one that records outbox events.
type Backend struct {
	Driver   string
	Entries  domain.EntryRepository
	Profiles domain.ProfileRepository
	Pool     *pgxpool.Pool
	closers  []func() error
}

// Close releases every handle held by the backend.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open connects to the store named by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		repo := postgres.NewRepository(pool)
		logger.Info().Str("driver", cfg.StoreDriver).Msg("store opened")
		return &Backend{
			Driver:   cfg.StoreDriver,
			Entries:  repo,
			Profiles: repo,
			Pool:     pool,
			closers:  []func() error{func() error { pool.Close(); return nil }},
		}, nil

	case config.DriverSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.SQLitePath).Msg("store opened")
		return &Backend{
			Driver:   cfg.StoreDriver,
			Entries:  store,
			Profiles: store,
			closers:  []func() error{store.Close},
		}, nil

	case config.DriverMemory:
		store := memory.NewStore()
		logger.Warn().Msg("using in-memory store, entries are lost on exit")
		return &Backend{Driver: cfg.StoreDriver, Entries: store, Profiles: store}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
