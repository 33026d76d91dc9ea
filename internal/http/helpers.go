package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"vandevis/internal/core"
	"vandevis/internal/log"
)

const maxBodyBytes = 1 << 20 // 1MB

// anonymousUser is the attribution recorded when the caller sends no
// X-User-ID header.
const anonymousUser = "anonyme"

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors to HTTP status codes. Unknown errors are
// logged and hidden behind a generic 500 so internals never leak.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			log.LogFields{log.FieldMethod: r.Method, log.FieldPath: r.URL.Path})
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrProjectNotFound),
		errors.Is(err, core.ErrScenarioNotFound),
		errors.Is(err, core.ErrExpenseNotFound),
		errors.Is(err, core.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrScenarioLocked),
		errors.Is(err, core.ErrScenarioNotLocked),
		errors.Is(err, core.ErrPrincipalDelete),
		errors.Is(err, core.ErrNotPrincipal),
		errors.Is(err, core.ErrNoPrincipal),
		errors.Is(err, core.ErrStaleUpdate):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDeposit),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrScenarioMismatch),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("invalid request body")

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// pathID extracts a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

// requestUser returns the acting user from the X-User-ID header.
func requestUser(r *http.Request) string {
	if user := r.Header.Get("X-User-ID"); user != "" {
		return user
	}
	return anonymousUser
}

func totalsKey(scenarioID int64) string {
	return "totals:" + strconv.FormatInt(scenarioID, 10)
}

func energyKey(scenarioID int64) string {
	return "energy:" + strconv.FormatInt(scenarioID, 10)
}

func comparisonKey(projectID int64) string {
	return "comparison:" + strconv.FormatInt(projectID, 10)
}

// invalidateScenario drops every cached read model derived from a scenario.
func (s *Server) invalidateScenario(projectID, scenarioID int64) {
	s.totalsCache.Delete(totalsKey(scenarioID))
	s.energyCache.Delete(energyKey(scenarioID))
	s.comparisonCache.Delete(comparisonKey(projectID))
}

// invalidateProject drops the project comparison. Used when the scenario set
// itself changes.
func (s *Server) invalidateProject(projectID int64) {
	s.comparisonCache.Delete(comparisonKey(projectID))
}
