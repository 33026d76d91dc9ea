// Package services implements the business operations of the estimation
// engine: aggregation, cross-scenario comparison, scenario lifecycle, the
// quote-lock state machine, and post-lock change auditing.
package services

import (
	"context"
	"time"

	"vandevis/internal/core"
)

// Ports to the persistence collaborator. The SQLite repository implements
// all of them; services only see the slices they need.
type (
	// Stores manage the updated_at column themselves: it is set on insert
	// and refreshed on every successful update. A non-zero UpdatedAt on an
	// update argument acts as a compare-and-swap guard and yields
	// core.ErrStaleUpdate when the stored row has moved on.
	ScenarioStore interface {
		ScenariosByProject(ctx context.Context, projectID int64) ([]core.Scenario, error)
		ScenarioByID(ctx context.Context, id int64) (*core.Scenario, error)
		// PrincipalScenario returns (nil, nil) when the project has no
		// principal scenario.
		PrincipalScenario(ctx context.Context, projectID int64) (*core.Scenario, error)
		InsertScenario(ctx context.Context, s *core.Scenario) error
		UpdateScenario(ctx context.Context, s *core.Scenario) error
		DeleteScenario(ctx context.Context, id int64) error
	}

	ExpenseStore interface {
		ExpensesByScenario(ctx context.Context, scenarioID int64) ([]core.Expense, error)
		ExpenseByID(ctx context.Context, id int64) (*core.Expense, error)
		InsertExpense(ctx context.Context, e *core.Expense) error
		UpdateExpense(ctx context.Context, e *core.Expense) error
		DeleteExpense(ctx context.Context, id int64) error
		DeleteExpensesByScenario(ctx context.Context, scenarioID int64) error
		UpdateDeliveryStatusByScenario(ctx context.Context, scenarioID int64, status core.DeliveryStatus) error
	}

	SnapshotStore interface {
		InsertSnapshot(ctx context.Context, s *core.Snapshot) error
		SnapshotsByProject(ctx context.Context, projectID int64) ([]core.Snapshot, error)
		SnapshotByID(ctx context.Context, id int64) (*core.Snapshot, error)
		MaxSnapshotVersion(ctx context.Context, scenarioID int64) (int, error)
	}

	HistoryStore interface {
		InsertHistoryEntry(ctx context.Context, h *core.HistoryEntry) error
		HistoryByProject(ctx context.Context, projectID int64) ([]core.HistoryEntry, error)
		ClearHistory(ctx context.Context, projectID int64) error
	}

	ProjectStore interface {
		Projects(ctx context.Context) ([]core.Project, error)
		ProjectByID(ctx context.Context, id int64) (*core.Project, error)
		InsertProject(ctx context.Context, p *core.Project) error
		UpdateProject(ctx context.Context, p *core.Project) error
	}

	PaymentStore interface {
		InsertPayment(ctx context.Context, p *core.PaymentTransaction) error
		PaymentsByProject(ctx context.Context, projectID int64) ([]core.PaymentTransaction, error)
	}

	// Store aggregates every persistence port.
	Store interface {
		ScenarioStore
		ExpenseStore
		SnapshotStore
		HistoryStore
		ProjectStore
		PaymentStore
	}

	// Transactor runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transactor interface {
		InTx(ctx context.Context, fn func(Store) error) error
	}

	// DB is the full persistence dependency of the services.
	DB interface {
		Store
		Transactor
	}

	// EventPublisher pushes engine events to the message broker. A nil
	// publisher disables event publication; publishing is best-effort and
	// never fails the originating operation.
	EventPublisher interface {
		PublishQuoteLocked(ctx context.Context, projectID, scenarioID, snapshotID int64, version int) error
		PublishExpenseAudited(ctx context.Context, projectID int64, action core.AuditAction, expenseID int64) error
	}
)

func nowUTC() time.Time {
	return time.Now().UTC()
}
