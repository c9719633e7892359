package worker

import (
	"context"
	"fmt"
	"log/slog"

	"checkin/internal/amqp"
	"checkin/internal/export"
	"checkin/internal/storage"
)

// Storage is the repository surface the worker needs.
type Storage interface {
	GetExportRows(ctx context.Context, checkinID int64) ([]storage.ExportRow, error)
	ListPendingExports(ctx context.Context, limit int) ([]storage.PendingExport, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// ExportWorker mirrors recorded check-ins from SQLite to the configured
// export target.
type ExportWorker struct {
	storage   Storage
	exporter  export.Exporter
	batchSize int
}

func NewExportWorker(storage Storage, exporter export.Exporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleRecordedMessage processes a single check-in recorded message.
// Returning an error makes the consumer nack and requeue the delivery.
func (w *ExportWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.CheckInRecordedMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"id", msg.ID,
		"version", msg.Version)

	return w.exportCheckIn(ctx, msg.ID)
}

// ProcessPending exports check-ins still marked pending, up to the batch
// size. This catches messages lost while the broker or worker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.storage.ListPendingExports(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}

	exported := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.exportCheckIn(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending check-in",
				"id", p.ID, "error", err)
			continue
		}
		exported++
	}

	if exported > 0 {
		slog.InfoContext(ctx, "Exported pending check-ins", "count", exported)
	}
	return exported, nil
}

func (w *ExportWorker) exportCheckIn(ctx context.Context, id int64) error {
	rows, err := w.storage.GetExportRows(ctx, id)
	if err != nil {
		return fmt.Errorf("get export rows for %d: %w", id, err)
	}

	// A check-in with no answers still counts as exported
	if len(rows) > 0 {
		if err := w.exporter.Append(ctx, toExportRows(rows)); err != nil {
			if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error",
					"id", id, "error", markErr)
			}
			return fmt.Errorf("append export rows for %d: %w", id, err)
		}
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		return fmt.Errorf("mark exported %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Check-in exported", "id", id, "rows", len(rows))
	return nil
}

func toExportRows(rows []storage.ExportRow) []export.Row {
	out := make([]export.Row, len(rows))
	for i, r := range rows {
		out[i] = export.Row{
			CheckInID: r.CheckInID,
			UserName:  r.UserName,
			WeekStart: r.WeekStart,
			Question:  r.QuestionText,
			Kind:      r.QuestionKind,
			Value:     r.Value,
		}
	}
	return out
}
