package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
)

// MonthEventPublisher is satisfied by *amqp.Client.
type MonthEventPublisher interface {
	PublishMonthClosed(ctx context.Context, id, label string) error
	PublishMonthDeleted(ctx context.Context, id string) error
}

// LedgerService wraps the ledger manager and announces history changes over
// AMQP. Every other operation goes straight to the embedded manager.
type LedgerService struct {
	*ledger.Manager
	publisher MonthEventPublisher
}

func NewLedgerService(manager *ledger.Manager, publisher MonthEventPublisher) *LedgerService {
	return &LedgerService{
		Manager:   manager,
		publisher: publisher,
	}
}

// CloseMonth archives the working month, then publishes month.closed.
// A failed publish is logged; the archive worker backfills it later.
func (s *LedgerService) CloseMonth(ctx context.Context) (core.MonthlyData, error) {
	snap, err := s.Manager.CloseMonth(ctx)
	if err != nil {
		return snap, err
	}
	s.publishClosed(ctx, snap)
	return snap, nil
}

func (s *LedgerService) CloseMonthWithNotes(ctx context.Context, notes string) (core.MonthlyData, error) {
	snap, err := s.Manager.CloseMonthWithNotes(ctx, notes)
	if err != nil {
		return snap, err
	}
	s.publishClosed(ctx, snap)
	return snap, nil
}

// DeleteHistoricalMonth removes a closed month and publishes month.deleted.
func (s *LedgerService) DeleteHistoricalMonth(ctx context.Context, id string) error {
	if err := s.Manager.DeleteHistoricalMonth(ctx, id); err != nil {
		return err
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping month deleted event", "month_id", id)
		return nil
	}
	if err := s.publisher.PublishMonthDeleted(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish month deleted event",
			"month_id", id, "error", err)
	}
	return nil
}

func (s *LedgerService) publishClosed(ctx context.Context, snap core.MonthlyData) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping month closed event", "month_id", snap.ID)
		return
	}
	if err := s.publisher.PublishMonthClosed(ctx, snap.ID, snap.Month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish month closed event",
			"month_id", snap.ID, "error", err)
	}
}

// Close releases the publisher connection.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
