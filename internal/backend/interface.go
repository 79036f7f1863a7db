package backend

import (
	"context"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
)

// Store is a ledger store that can also feed the archive worker.
type Store interface {
	ledger.Store
	GetClosedMonth(ctx context.Context, id string) (core.MonthlyData, error)
	PendingExports(ctx context.Context, limit int) ([]core.MonthlyData, error)
	MarkExported(ctx context.Context, id, ref string, at time.Time) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and what is needed to run it.
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
	// Ready reports whether the store can serve requests. Nil when the
	// store is always ready.
	Ready func(ctx context.Context) error
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// SeedFile is a JSON ledger snapshot loaded into the memory backend.
	// A missing file starts empty.
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
