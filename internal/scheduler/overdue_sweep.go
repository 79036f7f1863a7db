// Package scheduler runs periodic maintenance over the working month.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

const DefaultOverdueSweepCron = "5 0 * * *"

// OverdueMarker flags pending fixed expenses whose due date has passed.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// OverdueSweepService marks overdue fixed expenses on a cron schedule.
type OverdueSweepService struct {
	scheduler *gocron.Scheduler
	cron      string
	marker    OverdueMarker

	mu              sync.Mutex
	running         bool
	lastSweepAt     time.Time
	lastSweepMarked int
	lastSweepErr    error
}

func NewOverdueSweepService(marker OverdueMarker, cronExpr string) *OverdueSweepService {
	if cronExpr == "" {
		cronExpr = DefaultOverdueSweepCron
	}
	return &OverdueSweepService{
		scheduler: gocron.NewScheduler(time.Local),
		cron:      cronExpr,
		marker:    marker,
	}
}

// Start schedules the sweep and stops the scheduler when ctx is done.
func (s *OverdueSweepService) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting overdue sweep scheduler", "cron", s.cron)

	_, err := s.scheduler.Cron(s.cron).Do(func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule overdue sweep: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		slog.Info("Stopping overdue sweep scheduler")
		s.scheduler.Stop()
	}()

	return nil
}

// sweep runs one pass; a pass already in progress wins.
func (s *OverdueSweepService) sweep(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.InfoContext(ctx, "Overdue sweep already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	marked, err := s.marker.MarkOverdue(ctx)

	s.mu.Lock()
	s.running = false
	s.lastSweepAt = time.Now()
	s.lastSweepMarked = marked
	s.lastSweepErr = err
	s.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Overdue sweep failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Overdue sweep completed", "marked", marked)
}

// TriggerManualSweep runs a sweep now, synchronously.
func (s *OverdueSweepService) TriggerManualSweep(ctx context.Context) (int, error) {
	s.sweep(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSweepMarked, s.lastSweepErr
}

func (s *OverdueSweepService) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"sweep_running": s.running,
		"sweep_cron":    s.cron,
		"last_sweep_at": s.lastSweepAt,
		"last_marked":   s.lastSweepMarked,
	}
	if s.lastSweepErr != nil {
		status["last_error"] = s.lastSweepErr.Error()
	}
	return status
}
