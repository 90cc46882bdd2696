// Package storage provides durable key/value backends for the quote store.
//
// Every backend implements ports.KeyValueStore and ports.HealthChecker.
// Values are opaque strings; the quote store owns their encoding.
package storage

import (
	"fmt"
	"io"

	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Backend is a durable key/value store that can report its health and
// release its resources.
type Backend interface {
	ports.KeyValueStore
	ports.HealthChecker
	io.Closer
}

// Open creates the backend selected by cfg.Driver.
func Open(cfg *config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return NewFile(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
