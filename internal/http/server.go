// Package http exposes the estimation engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vandevis/internal/cache"
	"vandevis/internal/core"
	"vandevis/internal/log"
	"vandevis/internal/middleware/ratelimit"
	"vandevis/internal/middleware/security"
	"vandevis/internal/middleware/trace"
	"vandevis/internal/services"
)

// Server wires the HTTP surface to the engine services. Derived read models
// (totals, energy, comparison) are cached per key and invalidated on every
// mutation touching the underlying scenario or project.
type Server struct {
	http.Server

	store    services.DB
	registry *services.ScenarioRegistry
	locks    *services.LockManager
	auditor  *services.ChangeAuditor

	logger   *log.Logger
	detector *security.Detector
	limiter  *ratelimit.Limiter
	caches   *cache.Manager

	totalsCache     *cache.LRUCache[core.Totals]
	energyCache     *cache.LRUCache[*core.EnergyBalance]
	comparisonCache *cache.LRUCache[core.ComparisonTable]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// A nil events publisher disables broker notifications.
func NewServer(addr string, db services.DB, events services.EventPublisher) *Server {
	s := &Server{
		store:    db,
		registry: services.NewScenarioRegistry(db),
		locks:    services.NewLockManager(db, nil, events),
		auditor:  services.NewChangeAuditor(db, events),

		logger:   log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentHTTP}),
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		caches:   cache.NewManager(),

		totalsCache:     cache.NewLRUCache[core.Totals](200, 5*time.Minute),
		energyCache:     cache.NewLRUCache[*core.EnergyBalance](200, 5*time.Minute),
		comparisonCache: cache.NewLRUCache[core.ComparisonTable](100, 5*time.Minute),
	}

	s.caches.Register(s.totalsCache)
	s.caches.Register(s.energyCache)
	s.caches.Register(s.comparisonCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("GET /api/projects/{id}/scenarios", s.handleListScenarios)
	mux.HandleFunc("POST /api/projects/{id}/scenarios", s.handleCreateScenario)
	mux.HandleFunc("GET /api/projects/{id}/comparison", s.handleComparison)
	mux.HandleFunc("POST /api/projects/{id}/lock", s.handleLock)
	mux.HandleFunc("GET /api/projects/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/projects/{id}/payments", s.handlePayments)
	mux.HandleFunc("GET /api/projects/{id}/snapshots", s.handleListSnapshots)

	mux.HandleFunc("GET /api/scenarios/{id}", s.handleGetScenario)
	mux.HandleFunc("DELETE /api/scenarios/{id}", s.handleDeleteScenario)
	mux.HandleFunc("POST /api/scenarios/{id}/duplicate", s.handleDuplicateScenario)
	mux.HandleFunc("POST /api/scenarios/{id}/promote", s.handlePromoteScenario)
	mux.HandleFunc("GET /api/scenarios/{id}/totals", s.handleTotals)
	mux.HandleFunc("GET /api/scenarios/{id}/energy", s.handleEnergy)
	mux.HandleFunc("GET /api/scenarios/{id}/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/scenarios/{id}/expenses", s.handleCreateExpense)

	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/expenses/{id}/replace", s.handleReplaceExpense)

	mux.HandleFunc("GET /api/snapshots/{id}", s.handleGetSnapshot)

	mux.HandleFunc("POST /api/admin/scenarios/{id}/unlock", s.handleUnlockScenario)
	mux.HandleFunc("DELETE /api/admin/projects/{id}/history", s.handleClearHistory)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	withLogger := log.Middleware(s.logger)
	withRequestID := log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: headers.Middleware(tracer.Middleware(withLogger(withRequestID(s.guard(mux))))),
	}
	return s
}

// guard rejects suspicious requests and rate limits mutations before they
// reach a handler.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.detector.ExtractClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady verifies the storage backend answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.store.Projects(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
