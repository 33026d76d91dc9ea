package services_test

import (
	"context"
	"errors"
	"testing"

	"vandevis/internal/core"
	"vandevis/internal/services"
	"vandevis/internal/storage/memory"
)

type capturingPublisher struct {
	lockedSnapshots []int64
	auditActions    []core.AuditAction
	fail            bool
}

func (p *capturingPublisher) PublishQuoteLocked(_ context.Context, _, _, snapshotID int64, _ int) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.lockedSnapshots = append(p.lockedSnapshots, snapshotID)
	return nil
}

func (p *capturingPublisher) PublishExpenseAudited(_ context.Context, _ int64, action core.AuditAction, _ int64) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.auditActions = append(p.auditActions, action)
	return nil
}

func seedLockableProject(t *testing.T) (*memory.Store, core.Project, *core.Scenario) {
	t.Helper()
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)
	auditor := services.NewChangeAuditor(store, nil)
	ctx := context.Background()

	principal := mustCreate(t, registry, project.ID, "Amenagement complet")
	for _, e := range []core.Expense{
		{ScenarioID: principal.ID, Name: "Panneau solaire 150W", Category: "Electricite", UnitCost: core.Money{Cents: 20000}, SalePrice: core.Money{Cents: 25000}, Quantity: 2},
		{ScenarioID: principal.ID, Name: "Batterie lithium 100Ah", Category: "Electricite", UnitCost: core.Money{Cents: 80000}, SalePrice: core.Money{Cents: 95000}, Quantity: 1},
		{ScenarioID: principal.ID, Name: "Frigo a compression", Category: "Froid", UnitCost: core.Money{Cents: 40000}, SalePrice: core.Money{Cents: 50000}, Quantity: 1},
	} {
		if _, err := auditor.CreateExpense(ctx, e, ""); err != nil {
			t.Fatalf("seed expense %q: %v", e.Name, err)
		}
	}
	return store, project, principal
}

func TestLockFreezesQuote(t *testing.T) {
	store, project, principal := seedLockableProject(t)
	events := &capturingPublisher{}
	locker := services.NewLockManager(store, nil, events)
	ctx := context.Background()

	result, err := locker.Lock(ctx, services.LockRequest{
		ProjectID: project.ID,
		Deposit:   core.Money{Cents: 100000},
		Notes:     "Acompte recu par virement",
		UserID:    "marie",
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	if result.Snapshot.Version != 1 {
		t.Errorf("snapshot version = %d, want 1", result.Snapshot.Version)
	}
	if result.Totals.PurchaseTotal.Cents != 160000 {
		t.Errorf("purchase total = %d, want 160000", result.Totals.PurchaseTotal.Cents)
	}
	if result.Energy == nil || result.Energy.ProductionW != 300 || result.Energy.StorageAh != 100 {
		t.Errorf("energy = %+v, want 300W / 100Ah", result.Energy)
	}

	// Project moved to devis_accepte with deposit metadata set.
	after, err := store.ProjectByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	if after.FinancialStatus != core.StatusQuoteAccepted {
		t.Errorf("financial status = %q, want %q", after.FinancialStatus, core.StatusQuoteAccepted)
	}
	if after.QuoteValidatedAt == nil || after.DepositReceivedAt == nil {
		t.Error("quote/deposit timestamps not set")
	}
	if after.DepositAmount.Cents != 100000 {
		t.Errorf("deposit amount = %d, want 100000", after.DepositAmount.Cents)
	}

	// Scenario locked, expenses moved to the ordered state.
	locked, _ := store.ScenarioByID(ctx, principal.ID)
	if !locked.Locked {
		t.Error("scenario should be locked")
	}
	expenses, _ := store.ExpensesByScenario(ctx, principal.ID)
	for _, e := range expenses {
		if e.DeliveryStatus != core.DeliveryOrdered {
			t.Errorf("expense %q delivery status = %q, want %q", e.Name, e.DeliveryStatus, core.DeliveryOrdered)
		}
	}

	// Deposit recorded as a payment transaction.
	payments := store.Payments(project.ID)
	if len(payments) != 1 {
		t.Fatalf("payment count = %d, want 1", len(payments))
	}
	if payments[0].Kind != core.PaymentDeposit || payments[0].Amount.Cents != 100000 || payments[0].UserID != "marie" {
		t.Errorf("payment = %+v", payments[0])
	}

	// Snapshot content decodes back to the frozen state.
	snap, err := store.SnapshotByID(ctx, result.Snapshot.ID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	content, err := core.DecodeSnapshotContent(snap.Content)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if content.ExpenseCount != 3 || content.CategoryCount != 2 {
		t.Errorf("snapshot counts = %d expenses / %d categories, want 3 / 2", content.ExpenseCount, content.CategoryCount)
	}
	if content.Deposit.Cents != 100000 {
		t.Errorf("snapshot deposit = %d, want 100000", content.Deposit.Cents)
	}

	if len(events.lockedSnapshots) != 1 || events.lockedSnapshots[0] != result.Snapshot.ID {
		t.Errorf("published snapshots = %v, want [%d]", events.lockedSnapshots, result.Snapshot.ID)
	}
}

func TestLockWithoutPrincipalFails(t *testing.T) {
	store, project := newFixture(t)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	_, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 50000}})
	if !errors.Is(err, core.ErrNoPrincipal) {
		t.Fatalf("err = %v, want ErrNoPrincipal", err)
	}

	// No side effects: statut_financier unchanged, nothing recorded.
	after, _ := store.ProjectByID(ctx, project.ID)
	if after.FinancialStatus != core.StatusDraft {
		t.Errorf("financial status = %q, want %q", after.FinancialStatus, core.StatusDraft)
	}
	if snaps, _ := store.SnapshotsByProject(ctx, project.ID); len(snaps) != 0 {
		t.Errorf("snapshot count = %d, want 0", len(snaps))
	}
	if payments := store.Payments(project.ID); len(payments) != 0 {
		t.Errorf("payment count = %d, want 0", len(payments))
	}
}

func TestLockRejectsNonPositiveDeposit(t *testing.T) {
	store, project, _ := seedLockableProject(t)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	for _, cents := range []int64{0, -500} {
		_, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: cents}})
		if !errors.Is(err, core.ErrInvalidDeposit) {
			t.Errorf("deposit %d: err = %v, want ErrInvalidDeposit", cents, err)
		}
	}
	after, _ := store.ProjectByID(ctx, project.ID)
	if after.FinancialStatus != core.StatusDraft {
		t.Errorf("financial status = %q, want %q", after.FinancialStatus, core.StatusDraft)
	}
}

func TestLockRejectsSecondaryScenario(t *testing.T) {
	store, project, _ := seedLockableProject(t)
	registry := services.NewScenarioRegistry(store)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	secondary := mustCreate(t, registry, project.ID, "Variante")
	_, err := locker.Lock(ctx, services.LockRequest{ScenarioID: secondary.ID, Deposit: core.Money{Cents: 50000}})
	if !errors.Is(err, core.ErrNotPrincipal) {
		t.Fatalf("err = %v, want ErrNotPrincipal", err)
	}
}

func TestLockRejectsScenarioFromAnotherProject(t *testing.T) {
	store, target, _ := seedLockableProject(t)
	registry := services.NewScenarioRegistry(store)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	other := store.SeedProject(core.Project{Name: "Fourgon L3H3", ClientName: "Martin"})
	otherPrincipal := mustCreate(t, registry, other.ID, "Amenagement compact")

	_, err := locker.Lock(ctx, services.LockRequest{
		ProjectID:  target.ID,
		ScenarioID: otherPrincipal.ID,
		Deposit:    core.Money{Cents: 100000},
		UserID:     "marie",
	})
	if !errors.Is(err, core.ErrScenarioMismatch) {
		t.Fatalf("err = %v, want ErrScenarioMismatch", err)
	}

	// Neither project moved: the mismatch must reject before any write.
	for _, p := range []core.Project{target, other} {
		after, _ := store.ProjectByID(ctx, p.ID)
		if after.FinancialStatus != core.StatusDraft {
			t.Errorf("project %d financial status = %q, want %q", p.ID, after.FinancialStatus, core.StatusDraft)
		}
		if snaps, _ := store.SnapshotsByProject(ctx, p.ID); len(snaps) != 0 {
			t.Errorf("project %d snapshot count = %d, want 0", p.ID, len(snaps))
		}
		if payments := store.Payments(p.ID); len(payments) != 0 {
			t.Errorf("project %d payment count = %d, want 0", p.ID, len(payments))
		}
	}
	scenario, _ := store.ScenarioByID(ctx, otherPrincipal.ID)
	if scenario.Locked {
		t.Error("scenario should stay unlocked")
	}
}

func TestLockRejectsAlreadyLocked(t *testing.T) {
	store, project, _ := seedLockableProject(t)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	if _, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	_, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 50000}})
	if !errors.Is(err, core.ErrScenarioLocked) {
		t.Fatalf("err = %v, want ErrScenarioLocked", err)
	}
	if snaps, _ := store.SnapshotsByProject(ctx, project.ID); len(snaps) != 1 {
		t.Errorf("snapshot count = %d, want 1", len(snaps))
	}
}

func TestLockAfterUnlockBumpsVersion(t *testing.T) {
	store, project, principal := seedLockableProject(t)
	locker := services.NewLockManager(store, nil, nil)
	ctx := context.Background()

	if _, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := locker.Unlock(ctx, principal.ID, "admin"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	second, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 60000}})
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if second.Snapshot.Version != 2 {
		t.Errorf("snapshot version = %d, want 2", second.Snapshot.Version)
	}
}

func TestUnlockRequiresLockedScenario(t *testing.T) {
	store, project, principal := seedLockableProject(t)
	locker := services.NewLockManager(store, nil, nil)
	_ = project

	err := locker.Unlock(context.Background(), principal.ID, "admin")
	if !errors.Is(err, core.ErrScenarioNotLocked) {
		t.Fatalf("err = %v, want ErrScenarioNotLocked", err)
	}
}

func TestLockSurvivesPublishFailure(t *testing.T) {
	store, project, principal := seedLockableProject(t)
	locker := services.NewLockManager(store, nil, &capturingPublisher{fail: true})
	ctx := context.Background()

	if _, err := locker.Lock(ctx, services.LockRequest{ProjectID: project.ID, Deposit: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("lock should commit despite publish failure: %v", err)
	}
	locked, _ := store.ScenarioByID(ctx, principal.ID)
	if !locked.Locked {
		t.Error("scenario should stay locked")
	}
}
