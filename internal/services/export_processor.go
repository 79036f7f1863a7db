package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orcamento/internal/core"
)

// ExportSource lists closed months that still have to be exported.
type ExportSource interface {
	PendingExports(ctx context.Context, limit int) ([]core.MonthlyData, error)
}

// MonthExporter archives one closed month and marks it exported.
type MonthExporter interface {
	ExportMonth(ctx context.Context, m core.MonthlyData) error
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to look for unexported months (default: 5m)
	PollInterval time.Duration

	// BatchSize is the max number of months exported per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is how many failed attempts a month gets before it is skipped (default: 3)
	MaxRetries int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// ExportProcessor periodically exports closed months the event consumer
// missed, e.g. because the worker was down when the month was closed.
type ExportProcessor struct {
	source   ExportSource
	exporter MonthExporter
	config   ExportProcessorConfig

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	failures map[string]int
}

func NewExportProcessor(source ExportSource, exporter MonthExporter, config ExportProcessorConfig) *ExportProcessor {
	def := DefaultExportProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	return &ExportProcessor{
		source:   source,
		exporter: exporter,
		config:   config,
		failures: make(map[string]int),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch exports up to BatchSize pending months and returns how many
// succeeded. Months that already failed MaxRetries times are skipped.
func (p *ExportProcessor) ProcessBatch(ctx context.Context) int {
	p.mu.Lock()
	givenUp := 0
	for _, n := range p.failures {
		if n >= p.config.MaxRetries {
			givenUp++
		}
	}
	p.mu.Unlock()

	months, err := p.source.PendingExports(ctx, p.config.BatchSize+givenUp)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending exports", "error", err)
		return 0
	}

	exported, attempted := 0, 0
	for _, m := range months {
		if attempted == p.config.BatchSize {
			break
		}
		if ctx.Err() != nil {
			return exported
		}
		if p.attempts(m.ID) >= p.config.MaxRetries {
			continue
		}
		attempted++

		if err := p.exporter.ExportMonth(ctx, m); err != nil {
			p.handleFailure(ctx, m, err)
			continue
		}
		p.mu.Lock()
		delete(p.failures, m.ID)
		p.mu.Unlock()
		exported++
	}

	if attempted > 0 {
		slog.InfoContext(ctx, "Export batch processed",
			"attempted", attempted,
			"exported", exported)
	}
	return exported
}

func (p *ExportProcessor) attempts(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[id]
}

func (p *ExportProcessor) handleFailure(ctx context.Context, m core.MonthlyData, exportErr error) {
	p.mu.Lock()
	p.failures[m.ID]++
	attempt := p.failures[m.ID]
	p.mu.Unlock()

	if attempt >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Export failed permanently after max retries",
			"month_id", m.ID,
			"month", m.Month,
			"attempts", attempt,
			"error", exportErr)
		return
	}
	slog.WarnContext(ctx, "Export failed, will retry",
		"month_id", m.ID,
		"attempt", attempt,
		"error", exportErr)
}

// Failed returns the ids of months skipped after MaxRetries failures.
func (p *ExportProcessor) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for id, n := range p.failures {
		if n >= p.config.MaxRetries {
			out = append(out, id)
		}
	}
	return out
}

// RetryFailed gives every skipped month a fresh set of attempts.
func (p *ExportProcessor) RetryFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.failures)
}
