package memory

import (
	"context"
	"testing"

	"vandevis/internal/core"
)

func TestAppendQuoteSummary(t *testing.T) {
	store := New()
	ctx := context.Background()

	snapshot := core.Snapshot{ID: 42, ProjectID: 10, ScenarioID: 2, Version: 1}
	content := core.SnapshotContent{
		Project:  core.Project{ID: 10, Name: "Fourgon L2H2"},
		Scenario: core.Scenario{ID: 2, Name: "Amenagement complet"},
		Deposit:  core.Money{Cents: 100000},
	}

	ref, err := store.AppendQuoteSummary(ctx, snapshot, content)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("row ref = %q, want mem:1", ref)
	}

	ref, _ = store.AppendQuoteSummary(ctx, snapshot, content)
	if ref != "mem:2" {
		t.Errorf("second row ref = %q, want mem:2", ref)
	}

	exported := store.Exported()
	if len(exported) != 2 {
		t.Fatalf("exported count = %d, want 2", len(exported))
	}
	if exported[0].Snapshot.ID != 42 || exported[0].Content.Deposit.Cents != 100000 {
		t.Errorf("exported[0] = %+v", exported[0])
	}
}
