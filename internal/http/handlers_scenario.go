package http

import (
	"net/http"
	"time"

	"vandevis/internal/log"
	"vandevis/internal/services"
)

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	scenarios, err := s.registry.List(r.Context(), projectID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scenarios)
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.store.ProjectByID(r.Context(), projectID); err != nil {
		respondError(w, r, err)
		return
	}
	var req createScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	scenario, err := s.registry.Create(r.Context(), projectID, req.Name, req.Icon, req.Color)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateProject(projectID)
	respondJSON(w, http.StatusCreated, scenario)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	scenario, err := s.registry.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scenario)
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	scenario, err := s.registry.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.registry.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(scenario.ProjectID, id)
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDuplicateScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req duplicateScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	duplicate, err := s.registry.Duplicate(r.Context(), id, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateProject(duplicate.ProjectID)
	respondJSON(w, http.StatusCreated, duplicate)
}

func (s *Server) handlePromoteScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	scenario, err := s.registry.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.registry.Promote(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	// The reference scenario changed, so every comparison cell is stale.
	s.invalidateProject(scenario.ProjectID)
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	key := totalsKey(id)
	if totals, ok := s.totalsCache.Get(key); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Totals cache hit", log.FieldScenarioID, id)
		respondJSON(w, http.StatusOK, totals)
		return
	}

	if _, err := s.registry.Get(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	expenses, err := s.store.ExpensesByScenario(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	totals := services.ComputeTotals(expenses)
	s.totalsCache.Set(key, totals)
	respondJSON(w, http.StatusOK, totals)
}

// handleEnergy serves the scenario energy balance. The payload is null when
// no energy-related expense was recognized.
func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	key := energyKey(id)
	if energy, ok := s.energyCache.Get(key); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Energy cache hit", log.FieldScenarioID, id)
		respondJSON(w, http.StatusOK, energy)
		return
	}

	if _, err := s.registry.Get(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	expenses, err := s.store.ExpensesByScenario(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	energy := services.ComputeEnergyBalance(expenses, nil)
	s.energyCache.Set(key, energy)
	respondJSON(w, http.StatusOK, energy)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.registry.Get(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	expenses, err := s.store.ExpensesByScenario(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	expense, err := req.toExpense()
	if err != nil {
		respondError(w, r, err)
		return
	}
	expense.ScenarioID = scenarioID
	// A freshly created expense carries no concurrency guard.
	expense.UpdatedAt = time.Time{}

	created, err := s.auditor.CreateExpense(r.Context(), expense, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(created.ProjectID, scenarioID)
	respondJSON(w, http.StatusCreated, created)
}
