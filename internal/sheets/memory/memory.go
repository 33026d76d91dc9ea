// Package memory provides an in-memory QuoteWriter for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"vandevis/internal/core"
	ports "vandevis/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ExportedQuote
}

// ExportedQuote is one recorded export.
type ExportedQuote struct {
	Snapshot core.Snapshot
	Content  core.SnapshotContent
}

var _ ports.QuoteWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendQuoteSummary stores the export and returns a synthetic row reference.
func (s *Store) AppendQuoteSummary(_ context.Context, snapshot core.Snapshot, content core.SnapshotContent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ExportedQuote{Snapshot: snapshot, Content: content})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Exported returns a copy of everything written so far.
func (s *Store) Exported() []ExportedQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExportedQuote(nil), s.rows...)
}
