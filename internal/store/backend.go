package store

import (
	"fmt"

	"github.com/locshare/locshare/internal/config"
	"github.com/locshare/locshare/pkg/core"
)

// Backend is the interface all persistence implementations must satisfy.
// The live roster is always held in memory; backends only carry it across
// restarts and record history.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Record persistence
	SaveRecord(key string, rec core.LocationRecord) error
	DeleteRecord(key string) error

	// LoadSnapshot returns the current roster for a namespace.
	LoadSnapshot(namespace string) (core.Snapshot, error)
}

// NewBackend creates a persistence backend based on configuration.
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return NewGormPostgres(config.PostgresDSN()), nil
	case "sqlite":
		return NewGormSQLite(cfg.SQLite.Path), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
