// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/internal/storage/cassandra"
	"github.com/minesweeper-replay/internal/storage/redisstore"
	"github.com/minesweeper-replay/internal/storage/sqlite"
	"github.com/minesweeper-replay/pkg/logger"
)

// Open connects to the configured backend. The caller owns the returned
// store and must Close it.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.RecordStore, error) {
	log = log.With(logger.F("backend", cfg.Storage))

	switch cfg.Storage {
	case config.BackendMemory:
		log.Info("Using in-memory record store")
		return storage.NewMemoryStorage(), nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return store, nil

	case config.BackendRedis:
		store, err := redisstore.NewStore(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis store: %w", err)
		}
		return store, nil

	case config.BackendCassandra:
		client, err := cassandra.NewClient(cfg.Cassandra, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open Cassandra store: %w", err)
		}
		return cassandra.NewRepository(client, log, cfg.Cassandra.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// With opens the configured store, runs fn against it and closes it again,
// whatever fn returns.
func With(ctx context.Context, cfg *config.Config, log *logger.Logger, fn func(storage.RecordStore) error) (err error) {
	store, err := Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close store: %w", closeErr))
		}
	}()

	return fn(store)
}
