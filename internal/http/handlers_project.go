package http

import (
	"net/http"

	"vandevis/internal/core"
	"vandevis/internal/log"
	"vandevis/internal/services"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.Projects(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	project, err := req.toProject()
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.store.InsertProject(r.Context(), &project); err != nil {
		respondError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Project created",
		log.FieldProjectID, project.ID,
		log.FieldOperation, "create")
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	project, err := s.store.ProjectByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// handleComparison serves the cross-scenario diff table for a project. The
// table is cached per project and rebuilt after any mutation.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	key := comparisonKey(projectID)
	if table, ok := s.comparisonCache.Get(key); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Comparison cache hit", log.FieldProjectID, projectID)
		respondJSON(w, http.StatusOK, table)
		return
	}

	if _, err := s.store.ProjectByID(r.Context(), projectID); err != nil {
		respondError(w, r, err)
		return
	}
	scenarios, err := s.registry.List(r.Context(), projectID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	expensesByScenario := make(map[int64][]core.Expense, len(scenarios))
	for _, scenario := range scenarios {
		expenses, err := s.store.ExpensesByScenario(r.Context(), scenario.ID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		expensesByScenario[scenario.ID] = expenses
	}

	table := services.BuildComparison(scenarios, expensesByScenario)
	s.comparisonCache.Set(key, table)
	respondJSON(w, http.StatusOK, table)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req lockQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.locks.Lock(r.Context(), services.LockRequest{
		ProjectID:  projectID,
		ScenarioID: req.ScenarioID,
		Deposit:    req.Deposit,
		Notes:      req.Notes,
		UserID:     requestUser(r),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(projectID, result.Snapshot.ScenarioID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"snapshot":          result.Snapshot,
		"totaux":            result.Totals,
		"bilan_energetique": result.Energy,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	entries, err := s.auditor.History(r.Context(), projectID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// handlePayments lists the payments recorded against a project, starting
// with the deposit captured when the quote was locked.
func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.store.ProjectByID(r.Context(), projectID); err != nil {
		respondError(w, r, err)
		return
	}
	payments, err := s.store.PaymentsByProject(r.Context(), projectID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	snapshots, err := s.store.SnapshotsByProject(r.Context(), projectID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshots)
}

// handleGetSnapshot returns snapshot metadata together with the decoded
// frozen quote content.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	snapshot, err := s.store.SnapshotByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	content, err := core.DecodeSnapshotContent(snapshot.Content)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"snapshot": snapshot,
		"contenu":  content,
	})
}
