package http

import (
	"net/http"
)

// Administrative affordances. They sit under /api/admin and are expected to
// be shielded by the deployment, not by this service.

func (s *Server) handleUnlockScenario(w http.ResponseWriter, r *http.Request) {
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
	if err := s.locks.Unlock(r.Context(), id, requestUser(r)); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateScenario(scenario.ProjectID, id)
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := s.store.ProjectByID(r.Context(), projectID); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.auditor.ClearHistory(r.Context(), projectID, requestUser(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
