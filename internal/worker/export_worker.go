// Package worker exports locked quotes to the order follow-up spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"vandevis/internal/amqp"
	"vandevis/internal/core"
	"vandevis/internal/services"
	"vandevis/internal/sheets"
)

// ExportWorker consumes quote-locked messages and appends one summary row per
// snapshot. The message carries identifiers only; the snapshot is re-read
// from storage so the export always reflects the committed state.
type ExportWorker struct {
	snapshots services.SnapshotStore
	writer    sheets.QuoteWriter
}

func NewExportWorker(snapshots services.SnapshotStore, writer sheets.QuoteWriter) *ExportWorker {
	return &ExportWorker{snapshots: snapshots, writer: writer}
}

// HandleQuoteLocked processes one quote-locked message. A returned error
// requeues the message for retry.
func (w *ExportWorker) HandleQuoteLocked(ctx context.Context, msg *amqp.QuoteLockedMessage) error {
	slog.InfoContext(ctx, "Processing quote locked message",
		"snapshot_id", msg.SnapshotID,
		"projet_id", msg.ProjectID,
		"version", msg.Version)

	snapshot, err := w.snapshots.SnapshotByID(ctx, msg.SnapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	content, err := core.DecodeSnapshotContent(snapshot.Content)
	if err != nil {
		return fmt.Errorf("decode snapshot content: %w", err)
	}

	ref, err := w.writer.AppendQuoteSummary(ctx, *snapshot, content)
	if err != nil {
		return fmt.Errorf("append quote summary: %w", err)
	}

	slog.InfoContext(ctx, "Quote exported",
		"snapshot_id", snapshot.ID,
		"projet", content.Project.Name,
		"scenario", content.Scenario.Name,
		"sheets_ref", ref)
	return nil
}
