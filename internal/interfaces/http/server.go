// Package http is the operator surface: capability health, recent signals
// and Prometheus metrics. Read-only; all mutation goes through the bus API.
package http

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/health"
)

// Server exposes the health and signal endpoints.
type Server struct {
	bus       *bus.Bus
	monitor   *health.Monitor
	gatherer  prometheus.Gatherer
	startTime time.Time
	version   string
}

// NewServer creates the operator HTTP server.
func NewServer(b *bus.Bus, monitor *health.Monitor, gatherer prometheus.Gatherer, version string) *Server {
	return &Server{
		bus:       b,
		monitor:   monitor,
		gatherer:  gatherer,
		startTime: time.Now(),
		version:   version,
	}
}

// Router builds the mux router with all operator routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/signals/{consumer}", s.handleSignals).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return router
}

// HealthResponse is the capability health snapshot.
type HealthResponse struct {
	Status       string                   `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp    time.Time                `json:"timestamp"`
	Uptime       string                   `json:"uptime"`
	Version      string                   `json:"version"`
	HealthyCount int                      `json:"healthy_count"`
	TotalCount   int                      `json:"total_count"`
	Capabilities []health.CapabilityState `json:"capabilities"`
	System       SystemInfo               `json:"system"`
}

// SystemInfo provides process-level information.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, total := s.monitor.OverallScore()

	status := "healthy"
	switch {
	case total > 0 && healthy == 0:
		status = "unhealthy"
	case healthy < total:
		status = "degraded"
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:       status,
		Timestamp:    time.Now(),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Version:      s.version,
		HealthyCount: healthy,
		TotalCount:   total,
		Capabilities: s.monitor.States(),
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAlloc:      memStats.Alloc,
			NumGC:         memStats.NumGC,
		},
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	consumerID := mux.Vars(r)["consumer"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	deliveries, err := s.bus.Fetch(r.Context(), consumerID, limit)
	if err != nil {
		log.Error().Err(err).Str("consumer", consumerID).Msg("Signal fetch failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"consumer":  consumerID,
		"count":     len(deliveries),
		"signals":   deliveries,
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
