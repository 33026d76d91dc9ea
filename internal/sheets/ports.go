package sheets

import (
	"context"

	"vandevis/internal/core"
)

// QuoteWriter is the outbound port for exporting a locked quote to the order
// follow-up spreadsheet. Implementations append one summary row per snapshot
// and return a reference to the written row.
type QuoteWriter interface {
	AppendQuoteSummary(ctx context.Context, snapshot core.Snapshot, content core.SnapshotContent) (rowRef string, err error)
}
