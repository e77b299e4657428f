// Command sugarsim runs the artificial-society simulation on a sugar
// landscape: agents move, harvest, trade credit, spread culture and disease,
// and die, under the rule phases selected in the configuration.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/sugarscape/internal/api"
	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/engine"
	"github.com/talgya/sugarscape/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config overlaying the built-in defaults")
		ticks      = flag.Int("ticks", 0, "run exactly N ticks then exit; 0 = run until stopped")
		seed       = flag.Int64("seed", 0, "override the configured RNG seed (0 keeps the config value)")
		dbPath     = flag.String("db", "", "override the metrics database path")
		export     = flag.String("export", "", "write the run's tick stats as zstd JSONL on exit")
		interval   = flag.Duration("interval", 0, "wall-clock pacing per tick, e.g. 100ms; 0 = flat out")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *dbPath != "" {
		cfg.Metrics.Database = *dbPath
	}

	slog.Info("sugarscape starting",
		"seed", cfg.Seed,
		"grid", fmt.Sprintf("%dx%d", cfg.Grid.Width, cfg.Grid.Height),
		"population", cfg.Population.Size,
		"phases", cfg.Phases,
		"provider", cfg.Decision.Provider,
	)

	sim, err := engine.New(cfg)
	if err != nil {
		slog.Error("simulation setup failed", "error", err)
		os.Exit(1)
	}

	// ── Metrics sink ──────────────────────────────────────────────────
	var db *persistence.DB
	var runID string
	if cfg.Metrics.Database != "" {
		db, err = persistence.Open(cfg.Metrics.Database)
		if err != nil {
			slog.Error("failed to open metrics database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runID, err = db.BeginRun(cfg.Seed)
		if err != nil {
			slog.Error("failed to begin run", "error", err)
			os.Exit(1)
		}
	}

	runner := engine.NewRunner(sim)
	runner.Interval = *interval
	runner.OnTick = func(s *engine.Simulation) {
		if db == nil {
			return
		}
		if err := db.RecordTick(s.Stats); err != nil {
			slog.Error("tick recording failed", "tick", s.Tick, "error", err)
		}
		if cfg.Metrics.RecordAgents {
			if err := db.RecordAgents(s.Tick, s.Registry.Live()); err != nil {
				slog.Error("agent recording failed", "tick", s.Tick, "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Enabled {
		srv := &api.Server{Sim: sim, DB: db, Port: cfg.API.Port}
		srv.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		runner.Stop()
	}()

	start := time.Now()
	if *ticks > 0 {
		runner.RunTicks(*ticks)
	} else {
		runner.Run()
	}
	elapsed := time.Since(start)

	final := sim.CurrentStatus()
	slog.Info("run complete",
		"ticks", sim.Tick,
		"elapsed", elapsed.Round(time.Millisecond),
		"population", final.Population,
		"wealth", final.TotalWealth,
		"gini", fmt.Sprintf("%.3f", final.Stats.Gini),
	)

	if db != nil {
		if err := db.SaveEvents(sim.Events); err != nil {
			slog.Error("event save failed", "error", err)
		}
		if err := db.FinishRun(); err != nil {
			slog.Error("run finalization failed", "error", err)
		}
		if *export != "" {
			if err := db.ExportJSONL(runID, *export); err != nil {
				slog.Error("export failed", "error", err)
				os.Exit(1)
			}
		}
	} else if *export != "" {
		slog.Error("-export requires a metrics database (-db or metrics.database)")
		os.Exit(1)
	}
}
