package services_test

import (
	"context"
	"errors"
	"testing"

	"vandevis/internal/core"
	"vandevis/internal/services"
	"vandevis/internal/storage/memory"
)

func newFixture(t *testing.T) (*memory.Store, core.Project) {
	t.Helper()
	store := memory.New()
	project := store.SeedProject(core.Project{Name: "Fourgon L2H2", ClientName: "Dupont"})
	return store, project
}

func mustCreate(t *testing.T, r *services.ScenarioRegistry, projectID int64, name string) *core.Scenario {
	t.Helper()
	s, err := r.Create(context.Background(), projectID, name, "", "")
	if err != nil {
		t.Fatalf("create scenario %q: %v", name, err)
	}
	return s
}

func countPrincipals(t *testing.T, store *memory.Store, projectID int64) int {
	t.Helper()
	scenarios, err := store.ScenariosByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("list scenarios: %v", err)
	}
	n := 0
	for _, s := range scenarios {
		if s.Principal {
			n++
		}
	}
	return n
}

func TestCreateFirstScenarioBecomesPrincipal(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)

	first := mustCreate(t, registry, project.ID, "Configuration initiale")
	if !first.Principal {
		t.Error("first scenario should be principal")
	}
	second := mustCreate(t, registry, project.ID, "Variante eco")
	if second.Principal {
		t.Error("second scenario should not be principal")
	}
	if got := countPrincipals(t, store, project.ID); got != 1 {
		t.Errorf("principal count = %d, want 1", got)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)

	if _, err := registry.Create(context.Background(), project.ID, "  ", "", ""); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("err = %v, want ErrEmptyName", err)
	}
	scenarios, _ := store.ScenariosByProject(context.Background(), project.ID)
	if len(scenarios) != 0 {
		t.Errorf("no scenario should have been created, got %d", len(scenarios))
	}
}

func TestDuplicateCopiesExpensesNotLock(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)
	auditor := services.NewChangeAuditor(store, nil)
	ctx := context.Background()

	source := mustCreate(t, registry, project.ID, "Principal")
	if _, err := auditor.CreateExpense(ctx, core.Expense{
		ScenarioID: source.ID,
		Name:       "Batterie lithium 100Ah",
		Category:   "Electricite",
		UnitCost:   core.Money{Cents: 80000},
		SalePrice:  core.Money{Cents: 95000},
		Quantity:   1,
	}, ""); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	// Lock flag on the source must not carry over to the duplicate.
	locker := services.NewLockManager(store, nil, nil)
	if _, err := locker.Lock(ctx, services.LockRequest{ScenarioID: source.ID, Deposit: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	dup, err := registry.Duplicate(ctx, source.ID, "Variante")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Locked || dup.Principal {
		t.Errorf("duplicate should be unlocked and secondary: %+v", dup)
	}

	copied, _ := store.ExpensesByScenario(ctx, dup.ID)
	if len(copied) != 1 {
		t.Fatalf("expense count = %d, want 1", len(copied))
	}
	if copied[0].UnitCost.Cents != 80000 || copied[0].SalePrice.Cents != 95000 {
		t.Errorf("pricing fields not copied: %+v", copied[0])
	}
	if copied[0].DeliveryStatus != core.DeliveryPending {
		t.Errorf("delivery status = %q, want %q", copied[0].DeliveryStatus, core.DeliveryPending)
	}
}

func TestPromoteKeepsExactlyOnePrincipal(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)
	ctx := context.Background()

	first := mustCreate(t, registry, project.ID, "Principal")
	second := mustCreate(t, registry, project.ID, "Variante")

	if err := registry.Promote(ctx, second.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := countPrincipals(t, store, project.ID); got != 1 {
		t.Fatalf("principal count = %d, want 1", got)
	}
	promoted, _ := store.ScenarioByID(ctx, second.ID)
	demoted, _ := store.ScenarioByID(ctx, first.ID)
	if !promoted.Principal || demoted.Principal {
		t.Errorf("promotion not applied: promoted=%v demoted=%v", promoted.Principal, demoted.Principal)
	}

	// Promoting the current principal is a no-op.
	if err := registry.Promote(ctx, second.ID); err != nil {
		t.Fatalf("re-promote: %v", err)
	}
	if got := countPrincipals(t, store, project.ID); got != 1 {
		t.Errorf("principal count after no-op = %d, want 1", got)
	}
}

func TestDeletePrincipalRejected(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)
	auditor := services.NewChangeAuditor(store, nil)
	ctx := context.Background()

	principal := mustCreate(t, registry, project.ID, "Principal")
	if _, err := auditor.CreateExpense(ctx, core.Expense{
		ScenarioID: principal.ID,
		Name:       "Frigo a compression",
		Quantity:   1,
	}, ""); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	if err := registry.Delete(ctx, principal.ID); !errors.Is(err, core.ErrPrincipalDelete) {
		t.Fatalf("err = %v, want ErrPrincipalDelete", err)
	}

	// Scenario and expenses must be untouched.
	if _, err := store.ScenarioByID(ctx, principal.ID); err != nil {
		t.Errorf("principal scenario disappeared: %v", err)
	}
	expenses, _ := store.ExpensesByScenario(ctx, principal.ID)
	if len(expenses) != 1 {
		t.Errorf("expense count = %d, want 1", len(expenses))
	}
}

func TestDeleteSecondaryCascades(t *testing.T) {
	store, project := newFixture(t)
	registry := services.NewScenarioRegistry(store)
	auditor := services.NewChangeAuditor(store, nil)
	ctx := context.Background()

	mustCreate(t, registry, project.ID, "Principal")
	secondary := mustCreate(t, registry, project.ID, "Variante")
	if _, err := auditor.CreateExpense(ctx, core.Expense{
		ScenarioID: secondary.ID,
		Name:       "Frigo a compression",
		Quantity:   1,
	}, ""); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	if err := registry.Delete(ctx, secondary.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.ScenarioByID(ctx, secondary.ID); !errors.Is(err, core.ErrScenarioNotFound) {
		t.Errorf("scenario should be gone, got %v", err)
	}
	expenses, _ := store.ExpensesByScenario(ctx, secondary.ID)
	if len(expenses) != 0 {
		t.Errorf("expenses should cascade, got %d", len(expenses))
	}
}
