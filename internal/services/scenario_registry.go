package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vandevis/internal/core"
)

// ScenarioRegistry manages the scenario lifecycle and owns the "exactly one
// principal scenario per project" invariant. Role is a flag on the record,
// not a type hierarchy, so every invariant check lives here.
type ScenarioRegistry struct {
	db DB
}

func NewScenarioRegistry(db DB) *ScenarioRegistry {
	return &ScenarioRegistry{db: db}
}

// Create adds an empty scenario to a project. The first scenario of a
// project becomes principal so the invariant holds from the start; later
// ones are created secondary and unlocked.
func (r *ScenarioRegistry) Create(ctx context.Context, projectID int64, name, icon, color string) (*core.Scenario, error) {
	scenario := core.Scenario{
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		Icon:      icon,
		Color:     color,
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	err := r.db.InTx(ctx, func(store Store) error {
		existing, err := store.ScenariosByProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("list scenarios: %w", err)
		}
		scenario.Principal = len(existing) == 0
		scenario.Position = nextPosition(existing)
		if err := store.InsertScenario(ctx, &scenario); err != nil {
			return fmt.Errorf("insert scenario: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Scenario created",
		"scenario_id", scenario.ID,
		"project_id", projectID,
		"principal", scenario.Principal,
		"component", "scenario_registry",
		"operation", "create")
	return &scenario, nil
}

// Duplicate copies a scenario and its expenses (pricing fields included)
// into a new secondary scenario. The lock flag is never copied, and the
// copied expenses restart in the pending delivery state.
func (r *ScenarioRegistry) Duplicate(ctx context.Context, sourceID int64, name string) (*core.Scenario, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptyName
	}

	var duplicate core.Scenario
	err := r.db.InTx(ctx, func(store Store) error {
		source, err := store.ScenarioByID(ctx, sourceID)
		if err != nil {
			return err
		}
		siblings, err := store.ScenariosByProject(ctx, source.ProjectID)
		if err != nil {
			return fmt.Errorf("list scenarios: %w", err)
		}

		duplicate = core.Scenario{
			ProjectID: source.ProjectID,
			Name:      name,
			Icon:      source.Icon,
			Color:     source.Color,
			Principal: false,
			Locked:    false,
			Position:  nextPosition(siblings),
		}
		if err := store.InsertScenario(ctx, &duplicate); err != nil {
			return fmt.Errorf("insert scenario: %w", err)
		}

		expenses, err := store.ExpensesByScenario(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		for _, e := range expenses {
			e.ID = 0
			e.ScenarioID = duplicate.ID
			e.DeliveryStatus = core.DeliveryPending
			e.UpdatedAt = time.Time{}
			if err := store.InsertExpense(ctx, &e); err != nil {
				return fmt.Errorf("copy expense %q: %w", e.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Scenario duplicated",
		"source_id", sourceID,
		"scenario_id", duplicate.ID,
		"component", "scenario_registry",
		"operation", "duplicate")
	return &duplicate, nil
}

// Promote makes the target scenario principal, atomically demoting the
// current principal in the same transaction. Promoting the scenario that is
// already principal is a no-op.
func (r *ScenarioRegistry) Promote(ctx context.Context, id int64) error {
	err := r.db.InTx(ctx, func(store Store) error {
		target, err := store.ScenarioByID(ctx, id)
		if err != nil {
			return err
		}
		if target.Principal {
			return nil
		}

		current, err := store.PrincipalScenario(ctx, target.ProjectID)
		if err != nil {
			return fmt.Errorf("find principal: %w", err)
		}
		if current != nil {
			current.Principal = false
			if err := store.UpdateScenario(ctx, current); err != nil {
				return fmt.Errorf("demote scenario %d: %w", current.ID, err)
			}
		}

		target.Principal = true
		if err := store.UpdateScenario(ctx, target); err != nil {
			return fmt.Errorf("promote scenario %d: %w", target.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Scenario promoted to principal",
		"scenario_id", id,
		"component", "scenario_registry",
		"operation", "promote")
	return nil
}

// Delete removes a secondary scenario and cascades to its expenses.
// Deleting the principal scenario is a business error, not a crash.
func (r *ScenarioRegistry) Delete(ctx context.Context, id int64) error {
	err := r.db.InTx(ctx, func(store Store) error {
		scenario, err := store.ScenarioByID(ctx, id)
		if err != nil {
			return err
		}
		if scenario.Principal {
			return core.ErrPrincipalDelete
		}
		if err := store.DeleteExpensesByScenario(ctx, id); err != nil {
			return fmt.Errorf("delete expenses: %w", err)
		}
		if err := store.DeleteScenario(ctx, id); err != nil {
			return fmt.Errorf("delete scenario: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Scenario deleted",
		"scenario_id", id,
		"component", "scenario_registry",
		"operation", "delete")
	return nil
}

// List returns a project's scenarios in stored order.
func (r *ScenarioRegistry) List(ctx context.Context, projectID int64) ([]core.Scenario, error) {
	return r.db.ScenariosByProject(ctx, projectID)
}

// Get returns a single scenario.
func (r *ScenarioRegistry) Get(ctx context.Context, id int64) (*core.Scenario, error) {
	return r.db.ScenarioByID(ctx, id)
}

func nextPosition(scenarios []core.Scenario) int {
	max := 0
	for _, s := range scenarios {
		if s.Position > max {
			max = s.Position
		}
	}
	return max + 1
}
