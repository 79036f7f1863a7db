package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMarker struct {
	calls  atomic.Int32
	marked int
	err    error
}

func (m *countingMarker) MarkOverdue(context.Context) (int, error) {
	m.calls.Add(1)
	return m.marked, m.err
}

func TestNewOverdueSweepServiceDefaultsCron(t *testing.T) {
	s := NewOverdueSweepService(&countingMarker{}, "")
	assert.Equal(t, DefaultOverdueSweepCron, s.cron)
}

func TestTriggerManualSweep(t *testing.T) {
	marker := &countingMarker{marked: 2}
	s := NewOverdueSweepService(marker, "")

	n, err := s.TriggerManualSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), marker.calls.Load())

	status := s.Status()
	assert.Equal(t, false, status["sweep_running"])
	assert.Equal(t, 2, status["last_marked"])
	assert.NotContains(t, status, "last_error")
}

func TestTriggerManualSweepReportsError(t *testing.T) {
	s := NewOverdueSweepService(&countingMarker{err: errors.New("disk full")}, "")

	_, err := s.TriggerManualSweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, "disk full", s.Status()["last_error"])
}

func TestSweepSkipsWhileRunning(t *testing.T) {
	marker := &countingMarker{}
	s := NewOverdueSweepService(marker, "")
	s.running = true

	s.sweep(context.Background())
	assert.Zero(t, marker.calls.Load())
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := NewOverdueSweepService(&countingMarker{}, "not a cron")
	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestStartStopsWithContext(t *testing.T) {
	s := NewOverdueSweepService(&countingMarker{}, "0 3 * * *")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.scheduler.IsRunning())
	cancel()
	assert.Eventually(t, func() bool { return !s.scheduler.IsRunning() }, time.Second, 10*time.Millisecond)
}
