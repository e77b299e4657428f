package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/engine"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid.Width, cfg.Grid.Height = 10, 10
	cfg.Population.Size = 15
	cfg.API.Enabled = true
	cfg.Metrics.LogInterval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	sim, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sim.Step()
	return &Server{Sim: sim, Port: 0}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["tick"].(float64) != 1 {
		t.Fatalf("tick %v, want 1", body["tick"])
	}
	if body["population"].(float64) <= 0 {
		t.Fatal("population must be positive after one tick")
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	var stats engine.TickStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Tick != 1 || stats.Population == 0 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestAgentsEndpointAndDetail(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleAgents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))

	var list []engine.AgentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) == 0 {
		t.Fatal("agents list must be populated when the API is enabled")
	}

	rec = httptest.NewRecorder()
	s.handleAgentDetail(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/agent/"+strconv.FormatUint(uint64(list[0].ID), 10), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleAgentDetail(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent/999999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing agent status %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleAgentDetail(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent/xyz", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d, want 400", rec.Code)
	}
}

func TestAgentsTribeFilter(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleAgents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents?tribe=1", nil))

	var list []engine.AgentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	for _, a := range list {
		if a.Tribe != 1 {
			t.Fatalf("agent %d has tribe %d after filtering for 1", a.ID, a.Tribe)
		}
	}
}

func TestEventsEndpointLimit(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=2", nil))

	var events []engine.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) > 2 {
		t.Fatalf("%d events, limit was 2", len(events))
	}
}

func TestHistoryWithoutSinkIsUnavailable(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.handleStatsHistory(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503 without a database", rec.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("third request in the window must be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("distinct IPs have distinct buckets")
	}
	if rl.RetryAfter("10.0.0.1") <= 0 {
		t.Fatal("limited IP must get a retry hint")
	}
}
