package core

import (
	"context"
	"fmt"
	"io"

	"landledger/internal/infra/persistence/memory"
	"landledger/internal/infra/persistence/postgres"
	"landledger/internal/infra/persistence/sqlite"
	"landledger/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend. An empty driver means
// sqlite.
func OpenPersistentStore(ctx context.Context, opts StorageOptions, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(opts.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases the store's resources when it holds any.
func CloseStore(store domain.PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Wiped reports whether opening the store discarded state written under
// another schema version.
func Wiped(store domain.PersistentStore) bool {
	w, ok := store.(interface{ Wiped() bool })
	return ok && w.Wiped()
}
