// Package health exposes the HTTP operational surface of the ingester:
// liveness, readiness, a status snapshot, and Prometheus metrics.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dartwatch/disclosure-ingest/internal/metrics"
)

// Status is the JSON snapshot served on /health.
type Status struct {
	Status          string `json:"status"`
	Ready           bool   `json:"ready"`
	LastCycleAt     string `json:"last_cycle_at,omitempty"`
	CyclesCompleted int64  `json:"cycles_completed"`
	Processed       int64  `json:"processed"`
	Skipped         int64  `json:"skipped"`
	Failed          int64  `json:"failed"`
}

// Server tracks pipeline progress and serves it over HTTP. All counters
// are updated from the polling goroutine and read from handler goroutines.
type Server struct {
	router chi.Router
	logger *zap.Logger

	ready           atomic.Bool
	lastCycleUnix   atomic.Int64
	cyclesCompleted atomic.Int64
	processed       atomic.Int64
	skipped         atomic.Int64
	failed          atomic.Int64
}

// NewServer constructs a Server with its routes registered.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Get("/health/live", s.live)
	r.Get("/health/ready", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips readiness once the providers are connected and polling
// has started.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// RecordCycle marks one completed polling cycle.
func (s *Server) RecordCycle() {
	s.cyclesCompleted.Add(1)
	s.lastCycleUnix.Store(time.Now().Unix())
}

// RecordOutcomes adds per-cycle disclosure counts to the running totals.
func (s *Server) RecordOutcomes(processed, skipped, failed int) {
	s.processed.Add(int64(processed))
	s.skipped.Add(int64(skipped))
	s.failed.Add(int64(failed))
}

func (s *Server) snapshot() Status {
	st := Status{
		Status:          "ok",
		Ready:           s.ready.Load(),
		CyclesCompleted: s.cyclesCompleted.Load(),
		Processed:       s.processed.Load(),
		Skipped:         s.skipped.Load(),
		Failed:          s.failed.Load(),
	}
	if unix := s.lastCycleUnix.Load(); unix > 0 {
		st.LastCycleAt = time.Unix(unix, 0).UTC().Format(time.RFC3339)
	}
	return st
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) live(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
