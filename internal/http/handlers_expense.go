package http

import (
	"net/http"
	"time"
)

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
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
	expense.ID = id

	updated, err := s.auditor.UpdateExpense(r.Context(), expense, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(updated.ProjectID, updated.ScenarioID)
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	before, err := s.store.ExpenseByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	reason := r.URL.Query().Get("raison_changement")
	if err := s.auditor.DeleteExpense(r.Context(), id, reason); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(before.ProjectID, before.ScenarioID)
	respondJSON(w, http.StatusNoContent, nil)
}

// handleReplaceExpense swaps an expense for its replacement in one audited
// action, keeping the replacement in the same scenario.
func (s *Server) handleReplaceExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	replacement, err := req.toExpense()
	if err != nil {
		respondError(w, r, err)
		return
	}
	replacement.UpdatedAt = time.Time{}

	created, err := s.auditor.ReplaceExpense(r.Context(), id, replacement, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(created.ProjectID, created.ScenarioID)
	respondJSON(w, http.StatusCreated, created)
}
