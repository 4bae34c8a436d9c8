package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"liderforte/internal/infra/persistence/memory"
	"liderforte/internal/infra/persistence/postgres"
	"liderforte/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Environment variables read by StorageConfigFromEnv.
const (
	EnvStorageDriver = "LIDERFORTE_STORAGE_DRIVER"
	EnvSQLitePath    = "LIDERFORTE_SQLITE_PATH"
	EnvPostgresDSN   = "LIDERFORTE_POSTGRES_DSN"
)

// StorageConfigFromEnv overlays LIDERFORTE_* variables on base.
func StorageConfigFromEnv(base StorageConfig) StorageConfig {
	if v, ok := os.LookupEnv(EnvStorageDriver); ok {
		base.Driver = v
	}
	if v, ok := os.LookupEnv(EnvSQLitePath); ok {
		base.SQLitePath = v
	}
	if v, ok := os.LookupEnv(EnvPostgresDSN); ok {
		base.PostgresDSN = v
	}
	return base
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}

// OpenPersistentStore builds the configured store. Defaults to sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
