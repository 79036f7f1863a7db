package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/core"
	"orcamento/internal/report"
	"orcamento/internal/sheets"
	"orcamento/internal/storage"
)

// MonthSource is the read side of the ledger store the worker needs.
type MonthSource interface {
	GetClosedMonth(ctx context.Context, id string) (core.MonthlyData, error)
	PendingExports(ctx context.Context, limit int) ([]core.MonthlyData, error)
	MarkExported(ctx context.Context, id, ref string, at time.Time) error
}

// Notifier announces a closed month with its archive document attached.
type Notifier interface {
	SendMonthClosed(ctx context.Context, m core.MonthlyData, filename string, doc []byte) error
}

// ArchiveWorker exports closed months: a JSON file per month in the archive
// directory, a row in the history spreadsheet and an email. Sheets and email
// are optional.
type ArchiveWorker struct {
	source     MonthSource
	archiveDir string
	sheets     sheets.HistoryWriter
	deleter    sheets.HistoryDeleter
	notifier   Notifier
	batchSize  int
	now        func() time.Time
}

func NewArchiveWorker(source MonthSource, archiveDir string, writer sheets.HistoryWriter, deleter sheets.HistoryDeleter, notifier Notifier, batchSize int) *ArchiveWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ArchiveWorker{
		source:     source,
		archiveDir: archiveDir,
		sheets:     writer,
		deleter:    deleter,
		notifier:   notifier,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// ArchiveFilename is the archive file of a closed month:
// <closedAt UTC>-<id>.json, so a directory listing sorts by closing time.
func ArchiveFilename(m core.MonthlyData) string {
	return m.ClosedAt.UTC().Format("20060102T150405Z") + "-" + m.ID + ".json"
}

// HandleMonthEvent processes one month event from AMQP.
func (w *ArchiveWorker) HandleMonthEvent(ctx context.Context, ev *amqp.MonthEvent) error {
	slog.InfoContext(ctx, "Processing month event",
		"type", ev.Type,
		"month_id", ev.MonthID)

	switch ev.Type {
	case amqp.EventMonthClosed:
		m, err := w.source.GetClosedMonth(ctx, ev.MonthID)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before we got to it; the delete event cleans up.
			slog.WarnContext(ctx, "Closed month no longer exists, skipping export",
				"month_id", ev.MonthID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get closed month: %w", err)
		}
		return w.ExportMonth(ctx, m)
	case amqp.EventMonthDeleted:
		return w.RemoveMonth(ctx, ev.MonthID)
	}
	return fmt.Errorf("unknown event type: %s", ev.Type)
}

// ExportMonth writes the archive file, mirrors the month to Sheets, marks the
// month exported and then mails the summary. File and Sheets writes are
// idempotent. The email goes out only after this call won the mark, so a
// redelivered event or an overlapping backfill never mails twice; a failed
// send is logged and not retried.
func (w *ArchiveWorker) ExportMonth(ctx context.Context, m core.MonthlyData) error {
	doc, err := report.Marshal(report.BuildHistory([]core.MonthlyData{m}, w.now()))
	if err != nil {
		return fmt.Errorf("encode archive document: %w", err)
	}

	name := ArchiveFilename(m)
	path := filepath.Join(w.archiveDir, name)
	if err := writeFileAtomic(path, doc); err != nil {
		return fmt.Errorf("write archive file: %w", err)
	}

	if w.sheets != nil {
		ref, err := w.sheets.AppendMonth(ctx, m)
		if err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
		slog.InfoContext(ctx, "Closed month mirrored to Google Sheets",
			"month_id", m.ID,
			"sheets_ref", ref)
	}

	if err := w.source.MarkExported(ctx, m.ID, path, w.now()); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			slog.WarnContext(ctx, "Closed month deleted during export", "month_id", m.ID)
			return nil
		case errors.Is(err, storage.ErrAlreadyExported):
			slog.InfoContext(ctx, "Closed month already exported, skipping notification", "month_id", m.ID)
			return nil
		}
		return fmt.Errorf("mark exported: %w", err)
	}

	if w.notifier != nil {
		if err := w.notifier.SendMonthClosed(ctx, m, name, doc); err != nil {
			slog.ErrorContext(ctx, "Failed to send month closed email",
				"month_id", m.ID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Successfully exported closed month",
		"month_id", m.ID,
		"month", m.Month,
		"path", path,
		"income_cents", m.Income.Cents,
		"expenses_cents", m.Expenses.Cents)
	return nil
}

// RemoveMonth deletes the archive file and the spreadsheet row of a deleted month.
func (w *ArchiveWorker) RemoveMonth(ctx context.Context, id string) error {
	files, err := filepath.Glob(filepath.Join(w.archiveDir, "*-"+id+".json"))
	if err != nil {
		return fmt.Errorf("find archive files: %w", err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove archive file: %w", err)
		}
	}

	if w.deleter == nil {
		slog.WarnContext(ctx, "No history deleter configured, skipping Google Sheets deletion",
			"month_id", id)
	} else if err := w.deleter.DeleteMonth(ctx, id); err != nil {
		return fmt.Errorf("delete from sheets: %w", err)
	}

	slog.InfoContext(ctx, "Removed deleted month from archive",
		"month_id", id,
		"files", len(files))
	return nil
}

// StartupExportCheck exports months closed while the worker was down.
// Failures are logged; the export processor retries them later.
func (w *ArchiveWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.source.PendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, m := range pending {
		if err := w.ExportMonth(ctx, m); err != nil {
			slog.ErrorContext(ctx, "Failed to export month during startup",
				"month_id", m.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
