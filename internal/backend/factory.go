package backend

import (
	"context"
	"fmt"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
	"orcamento/internal/storage"
	"orcamento/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
		Ready:   store.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Store: store}, nil
}

// NewManager loads the ledger held by store. With demo set, an empty store
// starts from the demo data instead of a blank month.
func NewManager(ctx context.Context, store ledger.Store, settings core.Settings, demo bool) (*ledger.Manager, error) {
	opts := []ledger.Option{ledger.WithSettings(settings)}
	if demo {
		opts = append(opts, ledger.WithInitialState(ledger.DemoState(time.Now(), ledger.NewID)))
	}
	m, err := ledger.New(ctx, store, opts...)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return m, nil
}
