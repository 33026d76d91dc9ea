package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vandevis/internal/core"
)

// ChangeAuditor applies expense mutations and enforces the audit invariant:
// before any create, update, delete or replacement touching a locked
// scenario, the pre-mutation expense is captured as an append-only history
// entry. Mutations on unlocked scenarios pass through without a record.
type ChangeAuditor struct {
	db     DB
	events EventPublisher
	now    func() time.Time
}

func NewChangeAuditor(db DB, events EventPublisher) *ChangeAuditor {
	return &ChangeAuditor{db: db, events: events, now: nowUTC}
}

// CreateExpense inserts a new expense. On a locked scenario the inserted
// expense itself is captured in the history entry, since an addition has no
// pre-image.
func (a *ChangeAuditor) CreateExpense(ctx context.Context, expense core.Expense, reason string) (*core.Expense, error) {
	if expense.DeliveryStatus == "" {
		expense.DeliveryStatus = core.DeliveryPending
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	var locked bool
	err := a.db.InTx(ctx, func(store Store) error {
		scenario, err := store.ScenarioByID(ctx, expense.ScenarioID)
		if err != nil {
			return err
		}
		expense.ProjectID = scenario.ProjectID
		if err := store.InsertExpense(ctx, &expense); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		locked = scenario.Locked
		if locked {
			return a.appendHistory(ctx, store, expense, core.ActionCreate, reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.publishAudit(ctx, locked, expense.ProjectID, core.ActionCreate, expense.ID)
	return &expense, nil
}

// UpdateExpense applies field changes to an expense. On a locked scenario
// the pre-edit expense is recorded first, in the same transaction.
func (a *ChangeAuditor) UpdateExpense(ctx context.Context, expense core.Expense, reason string) (*core.Expense, error) {
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	var (
		locked  bool
		updated core.Expense
	)
	err := a.db.InTx(ctx, func(store Store) error {
		before, err := store.ExpenseByID(ctx, expense.ID)
		if err != nil {
			return err
		}
		scenario, err := store.ScenarioByID(ctx, before.ScenarioID)
		if err != nil {
			return err
		}
		locked = scenario.Locked
		if locked {
			if err := a.appendHistory(ctx, store, *before, core.ActionUpdate, reason); err != nil {
				return err
			}
		}

		expense.ScenarioID = before.ScenarioID
		expense.ProjectID = before.ProjectID
		if err := store.UpdateExpense(ctx, &expense); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		updated = expense
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.publishAudit(ctx, locked, updated.ProjectID, core.ActionUpdate, updated.ID)
	return &updated, nil
}

// DeleteExpense removes an expense, capturing it first when its scenario is
// locked.
func (a *ChangeAuditor) DeleteExpense(ctx context.Context, id int64, reason string) error {
	var (
		locked    bool
		projectID int64
	)
	err := a.db.InTx(ctx, func(store Store) error {
		before, err := store.ExpenseByID(ctx, id)
		if err != nil {
			return err
		}
		scenario, err := store.ScenarioByID(ctx, before.ScenarioID)
		if err != nil {
			return err
		}
		locked = scenario.Locked
		projectID = before.ProjectID
		if locked {
			if err := a.appendHistory(ctx, store, *before, core.ActionDelete, reason); err != nil {
				return err
			}
		}
		if err := store.DeleteExpense(ctx, id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.publishAudit(ctx, locked, projectID, core.ActionDelete, id)
	return nil
}

// ReplaceExpense swaps one expense for another in a single audited action,
// used after locking when a part becomes unavailable. The replaced expense
// is the captured pre-image.
func (a *ChangeAuditor) ReplaceExpense(ctx context.Context, oldID int64, replacement core.Expense, reason string) (*core.Expense, error) {
	if replacement.DeliveryStatus == "" {
		replacement.DeliveryStatus = core.DeliveryPending
	}
	if err := replacement.Validate(); err != nil {
		return nil, err
	}

	var locked bool
	err := a.db.InTx(ctx, func(store Store) error {
		before, err := store.ExpenseByID(ctx, oldID)
		if err != nil {
			return err
		}
		scenario, err := store.ScenarioByID(ctx, before.ScenarioID)
		if err != nil {
			return err
		}
		locked = scenario.Locked
		if locked {
			if err := a.appendHistory(ctx, store, *before, core.ActionReplace, reason); err != nil {
				return err
			}
		}
		if err := store.DeleteExpense(ctx, oldID); err != nil {
			return fmt.Errorf("delete replaced expense: %w", err)
		}
		replacement.ScenarioID = before.ScenarioID
		replacement.ProjectID = before.ProjectID
		if err := store.InsertExpense(ctx, &replacement); err != nil {
			return fmt.Errorf("insert replacement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.publishAudit(ctx, locked, replacement.ProjectID, core.ActionReplace, replacement.ID)
	return &replacement, nil
}

// History returns a project's audit log, newest first.
func (a *ChangeAuditor) History(ctx context.Context, projectID int64) ([]core.HistoryEntry, error) {
	return a.db.HistoryByProject(ctx, projectID)
}

// ClearHistory wipes a project's audit log. Administrative affordance only;
// logs loudly with the acting user.
func (a *ChangeAuditor) ClearHistory(ctx context.Context, projectID int64, userID string) error {
	if err := a.db.ClearHistory(ctx, projectID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	slog.WarnContext(ctx, "Project history cleared by administrative action",
		"project_id", projectID,
		"user_id", userID,
		"component", "change_auditor",
		"operation", "clear_history")
	return nil
}

func (a *ChangeAuditor) appendHistory(ctx context.Context, store Store, before core.Expense, action core.AuditAction, reason string) error {
	oldJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("encode expense pre-image: %w", err)
	}
	entry := core.HistoryEntry{
		ProjectID:  before.ProjectID,
		Action:     action,
		OldExpense: oldJSON,
		Reason:     reason,
		RecordedAt: a.now(),
	}
	if err := store.InsertHistoryEntry(ctx, &entry); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func (a *ChangeAuditor) publishAudit(ctx context.Context, locked bool, projectID int64, action core.AuditAction, expenseID int64) {
	if !locked || a.events == nil {
		return
	}
	if err := a.events.PublishExpenseAudited(ctx, projectID, action, expenseID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish audit event",
			"project_id", projectID,
			"action", string(action),
			"expense_id", expenseID,
			"error", err)
	}
}
