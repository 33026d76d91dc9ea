package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vandevis/internal/core"
)

// LockRequest is the quote-lock contract. ScenarioID targets the principal
// scenario directly; when zero, the principal of ProjectID is resolved.
type LockRequest struct {
	ProjectID  int64
	ScenarioID int64
	Deposit    core.Money
	Notes      string
	UserID     string
}

// LockResult reports what a successful lock produced.
type LockResult struct {
	Snapshot core.Snapshot
	Totals   core.Totals
	Energy   *core.EnergyBalance
}

// LockManager drives the quote-freeze state machine. A lock computes the
// principal scenario's totals and energy balance, persists an immutable
// snapshot, moves the project to devis_accepte, records the deposit payment
// and transitions every expense to the ordered state, all inside a single
// transaction so a mid-sequence failure cannot leave a project partially
// locked.
type LockManager struct {
	db        DB
	extractor EnergyExtractor
	events    EventPublisher
	now       func() time.Time
}

func NewLockManager(db DB, extractor EnergyExtractor, events EventPublisher) *LockManager {
	if extractor == nil {
		extractor = DefaultExtractor
	}
	return &LockManager{db: db, extractor: extractor, events: events, now: nowUTC}
}

// Lock freezes the principal scenario's quote. Validation failures (missing
// principal, scenario outside the requested project, non-positive deposit,
// already locked) reject before any write.
// Re-locking a locked scenario is rejected; a new lock is only possible
// after an explicit administrative unlock and then produces a snapshot with
// the next version number.
func (m *LockManager) Lock(ctx context.Context, req LockRequest) (*LockResult, error) {
	if req.Deposit.Cents <= 0 {
		return nil, core.ErrInvalidDeposit
	}

	scenario, err := m.resolveScenario(ctx, req)
	if err != nil {
		return nil, err
	}
	if !scenario.Principal {
		return nil, core.ErrNotPrincipal
	}
	if scenario.Locked {
		return nil, core.ErrScenarioLocked
	}

	lockedAt := m.now()
	var result LockResult

	err = m.db.InTx(ctx, func(store Store) error {
		// Re-read under the transaction so a concurrent lock cannot slip
		// between the precondition check and the writes.
		current, err := store.ScenarioByID(ctx, scenario.ID)
		if err != nil {
			return fmt.Errorf("lock step load scenario: %w", err)
		}
		if current.Locked {
			return core.ErrScenarioLocked
		}

		expenses, err := store.ExpensesByScenario(ctx, scenario.ID)
		if err != nil {
			return fmt.Errorf("lock step load expenses: %w", err)
		}
		active := ActiveExpenses(expenses)
		result.Totals = ComputeTotals(active)
		result.Energy = ComputeEnergyBalance(active, m.extractor)

		project, err := store.ProjectByID(ctx, scenario.ProjectID)
		if err != nil {
			return fmt.Errorf("lock step load project: %w", err)
		}

		content := core.SnapshotContent{
			Project:       *project,
			Scenario:      *current,
			Expenses:      active,
			Totals:        result.Totals,
			Energy:        result.Energy,
			CategoryCount: CountCategories(active),
			ExpenseCount:  len(active),
			Deposit:       req.Deposit,
			LockedAt:      lockedAt,
		}
		encoded, err := content.Encode()
		if err != nil {
			return fmt.Errorf("lock step encode snapshot: %w", err)
		}

		version, err := store.MaxSnapshotVersion(ctx, scenario.ID)
		if err != nil {
			return fmt.Errorf("lock step snapshot version: %w", err)
		}
		snapshot := core.Snapshot{
			ProjectID:  scenario.ProjectID,
			ScenarioID: scenario.ID,
			Version:    version + 1,
			Name:       fmt.Sprintf("Devis %s v%d", current.Name, version+1),
			Content:    encoded,
			Notes:      req.Notes,
			CreatedAt:  lockedAt,
		}
		if err := store.InsertSnapshot(ctx, &snapshot); err != nil {
			return fmt.Errorf("lock step persist snapshot: %w", err)
		}
		result.Snapshot = snapshot

		project.FinancialStatus = core.StatusQuoteAccepted
		project.QuoteValidatedAt = &lockedAt
		project.DepositReceivedAt = &lockedAt
		project.DepositAmount = req.Deposit
		if err := store.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("lock step update project: %w", err)
		}

		current.Locked = true
		if err := store.UpdateScenario(ctx, current); err != nil {
			return fmt.Errorf("lock step lock scenario: %w", err)
		}

		payment := core.PaymentTransaction{
			ProjectID: scenario.ProjectID,
			Kind:      core.PaymentDeposit,
			Amount:    req.Deposit,
			UserID:    req.UserID,
			CreatedAt: lockedAt,
		}
		if err := store.InsertPayment(ctx, &payment); err != nil {
			return fmt.Errorf("lock step record payment: %w", err)
		}

		if err := store.UpdateDeliveryStatusByScenario(ctx, scenario.ID, core.DeliveryOrdered); err != nil {
			return fmt.Errorf("lock step order expenses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Quote locked",
		"project_id", scenario.ProjectID,
		"scenario_id", scenario.ID,
		"snapshot_id", result.Snapshot.ID,
		"version", result.Snapshot.Version,
		"deposit_cents", req.Deposit.Cents,
		"component", "lock_manager",
		"operation", "lock")

	if m.events != nil {
		if err := m.events.PublishQuoteLocked(ctx, scenario.ProjectID, scenario.ID, result.Snapshot.ID, result.Snapshot.Version); err != nil {
			// Export is best-effort; the lock already committed.
			slog.ErrorContext(ctx, "Failed to publish quote locked event",
				"snapshot_id", result.Snapshot.ID,
				"error", err)
		}
	}
	return &result, nil
}

// Unlock clears the lock flag without touching the snapshot or the history
// log. This is an administrative and test affordance, not part of the
// normal business flow, so it logs at warning level with the acting user.
func (m *LockManager) Unlock(ctx context.Context, scenarioID int64, userID string) error {
	err := m.db.InTx(ctx, func(store Store) error {
		scenario, err := store.ScenarioByID(ctx, scenarioID)
		if err != nil {
			return err
		}
		if !scenario.Locked {
			return core.ErrScenarioNotLocked
		}
		scenario.Locked = false
		return store.UpdateScenario(ctx, scenario)
	})
	if err != nil {
		return err
	}

	slog.WarnContext(ctx, "Scenario unlocked by administrative action",
		"scenario_id", scenarioID,
		"user_id", userID,
		"component", "lock_manager",
		"operation", "unlock")
	return nil
}

func (m *LockManager) resolveScenario(ctx context.Context, req LockRequest) (*core.Scenario, error) {
	if req.ScenarioID != 0 {
		scenario, err := m.db.ScenarioByID(ctx, req.ScenarioID)
		if err != nil {
			return nil, err
		}
		// An explicit scenario must belong to the requested project, or a
		// caller aiming at one project could lock another.
		if req.ProjectID != 0 && scenario.ProjectID != req.ProjectID {
			return nil, core.ErrScenarioMismatch
		}
		return scenario, nil
	}
	principal, err := m.db.PrincipalScenario(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	if principal == nil {
		return nil, core.ErrNoPrincipal
	}
	return principal, nil
}
