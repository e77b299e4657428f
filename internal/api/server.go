// Package api provides the read-only HTTP observation API. Every endpoint
// serves from the Status snapshot the engine publishes at each tick boundary,
// so handlers never race the simulation loop.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/sugarscape/internal/engine"
	"github.com/talgya/sugarscape/internal/persistence"
)

// Server serves simulation state over HTTP.
type Server struct {
	Sim  *engine.Simulation
	DB   *persistence.DB // nil when the metrics sink is disabled
	Port int
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	// The history endpoint hits SQLite; keep scrapers from hammering it.
	historyLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats/history", RateLimitMiddleware(historyLimiter, s.handleStatsHistory))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, corsMiddleware(mux)); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.CurrentStatus()
	writeJSON(w, map[string]any{
		"tick":         st.Tick,
		"population":   st.Population,
		"total_wealth": st.TotalWealth,
		"active_loans": st.ActiveLoans,
		"updated_at":   st.UpdatedAt,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.CurrentStatus().Stats)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.CurrentStatus()
	agents := st.Agents
	if agents == nil {
		agents = []engine.AgentSummary{}
	}
	if tribe := r.URL.Query().Get("tribe"); tribe != "" {
		t, err := strconv.Atoi(tribe)
		if err != nil {
			http.Error(w, "invalid tribe", http.StatusBadRequest)
			return
		}
		filtered := make([]engine.AgentSummary, 0, len(agents))
		for _, a := range agents {
			if a.Tribe == t {
				filtered = append(filtered, a)
			}
		}
		agents = filtered
	}
	writeJSON(w, agents)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	for _, a := range s.Sim.CurrentStatus().Agents {
		if uint64(a.ID) == id {
			writeJSON(w, a)
			return
		}
	}
	http.Error(w, "agent not found", http.StatusNotFound)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.CurrentStatus().Events
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "metrics sink not enabled", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.DB.RunStats(s.DB.RunID())
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		writeJSON(w, []engine.TickStats{})
		return
	}

	from, to := uint64(0), uint64(1<<63-1)
	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			from = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 64); err == nil {
			to = v
		}
	}
	filtered := make([]engine.TickStats, 0, len(stats))
	for _, s := range stats {
		if s.Tick >= from && s.Tick <= to {
			filtered = append(filtered, s)
		}
	}
	writeJSON(w, filtered)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
