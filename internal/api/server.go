// Package api implements the admin REST/dashboard surface described in
// SPEC_FULL.md §6 — a supplemental feature carried from the teacher
// project's own admin API, since a production TCP load balancer carries
// this kind of operational surface even though the original program has
// no equivalent.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tcplb/tcplb/internal/config"
	"github.com/tcplb/tcplb/internal/metrics"
	"github.com/tcplb/tcplb/internal/pool"
)

// Server is the admin REST API and dashboard server.
type Server struct {
	pool    *pool.Pool
	metrics *metrics.Collector

	httpServer *http.Server
	startTime  time.Time

	adminTokenHash string
	adminSalt      string
}

// NewServer creates a new admin API server over p, reporting metrics
// registered in m and requiring bearer tokens per the AdminConfig.
func NewServer(p *pool.Pool, m *metrics.Collector, admin config.AdminConfig) *Server {
	return &Server{
		pool:           p,
		metrics:        m,
		startTime:      time.Now(),
		adminTokenHash: admin.TokenHash,
		adminSalt:      admin.Salt,
	}
}

// Start starts the HTTP API server on the given port.
func (s *Server) Start(port int) error {
	r := mux.NewRouter()

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/backends", s.requireBearerToken(s.listBackends)).Methods("GET")
	r.HandleFunc("/backends/{name}", s.requireBearerToken(s.getBackend)).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	// Admin dashboard — registered last, on the exact paths "/" and "/dashboard".
	r.HandleFunc("/", s.dashboardHandler).Methods("GET")
	r.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("[api] admin API listening on %s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// statusHandler reports process-level status; unauthenticated, matching
// the teacher's own /status route which carries no tenant secrets.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"num_backends":   len(s.pool.Backends()),
	})
}

// listBackends returns every live backend's current stats snapshot.
func (s *Server) listBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

// getBackend returns one named backend's stats, or 404 if not live.
func (s *Server) getBackend(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, stat := range s.pool.Stats() {
		if stat.Name == name {
			writeJSON(w, http.StatusOK, stat)
			return
		}
	}
	writeError(w, http.StatusNotFound, "backend not found")
}

// healthHandler reports 200 if at least one backend is live, 503
// otherwise — per SPEC_FULL.md §6.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	live := len(s.pool.Backends())
	status := http.StatusOK
	statusStr := "healthy"
	if live == 0 {
		status = http.StatusServiceUnavailable
		statusStr = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":        statusStr,
		"live_backends": live,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
