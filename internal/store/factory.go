package store

import (
	"context"
	"fmt"

	"ratelimiter/internal/models"
)

// Factory creates Store instances from configuration, so backends can be
// swapped without touching callers.
type Factory struct{}

// NewFactory creates a store factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a store backend based on the provided configuration.
// Supported backends:
//   - memory: sharded in-process map (default; single-node)
//   - file: memory store with JSON snapshot persistence across restarts
//   - sqlite: SQLite database (single-node durability)
//   - postgres: PostgreSQL (shared state across replicas)
func (f *Factory) Create(ctx context.Context, config models.StoreConfig) (Store, error) {
	switch config.Type {
	case models.StoreTypeMemory:
		return NewMemoryStore(config.SweepInterval), nil
	case models.StoreTypeFile:
		return NewFileStore(config.Path, config.FlushInterval, config.SweepInterval)
	case models.StoreTypeSQLite:
		return NewSQLiteStore(config.Database.DSN, config.SweepInterval)
	case models.StoreTypePostgres:
		return NewPostgresStore(ctx, config.Database.DSN, config.SweepInterval)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// SupportedTypes returns all supported store backend types.
func (f *Factory) SupportedTypes() []string {
	return []string{models.StoreTypeMemory, models.StoreTypeFile, models.StoreTypeSQLite, models.StoreTypePostgres}
}
