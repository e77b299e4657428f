// Package persistence provides the SQLite metrics sink: one row of tick
// statistics per tick, optional per-agent snapshots, and the event stream,
// all keyed by a run identifier so several runs can share one database file.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/engine"
)

// DB wraps a SQLite connection for metrics recording.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		total_wealth INTEGER NOT NULL,
		grid_sugar INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths_starvation INTEGER NOT NULL,
		deaths_old_age INTEGER NOT NULL,
		deaths_combat INTEGER NOT NULL,
		combat_kills INTEGER NOT NULL,
		combat_stolen INTEGER NOT NULL,
		loans_originated INTEGER NOT NULL,
		loan_volume INTEGER NOT NULL,
		loans_repaid INTEGER NOT NULL,
		loans_refinanced INTEGER NOT NULL,
		loans_forgiven INTEGER NOT NULL,
		loans_defaulted INTEGER NOT NULL,
		infections INTEGER NOT NULL,
		decision_downgrades INTEGER NOT NULL,
		gini REAL NOT NULL,
		culture_entropy REAL NOT NULL,
		moran_i REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS agent_records (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		age INTEGER NOT NULL,
		sugar INTEGER NOT NULL,
		vision INTEGER NOT NULL,
		metabolism INTEGER NOT NULL,
		tribe INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tick_stats_run ON tick_stats(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_agent_records_run ON agent_records(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and makes it current. Returns the run id.
func (db *DB) BeginRun(seed int64) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at) VALUES (?, ?, ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	db.runID = id
	slog.Info("metrics run started", "run", id, "seed", seed)
	return id, nil
}

// FinishRun stamps the current run's end time.
func (db *DB) FinishRun() error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), db.runID,
	)
	return err
}

// RunID returns the current run identifier.
func (db *DB) RunID() string { return db.runID }

type tickRow struct {
	RunID string `db:"run_id"`
	engine.TickStats
}

// RecordTick appends one row of tick statistics for the current run.
func (db *DB) RecordTick(stats engine.TickStats) error {
	_, err := db.conn.NamedExec(`INSERT INTO tick_stats
		(run_id, tick, population, total_wealth, grid_sugar, births,
		 deaths_starvation, deaths_old_age, deaths_combat,
		 combat_kills, combat_stolen,
		 loans_originated, loan_volume, loans_repaid, loans_refinanced,
		 loans_forgiven, loans_defaulted,
		 infections, decision_downgrades, gini, culture_entropy, moran_i)
		VALUES (:run_id, :tick, :population, :total_wealth, :grid_sugar, :births,
		 :deaths_starvation, :deaths_old_age, :deaths_combat,
		 :combat_kills, :combat_stolen,
		 :loans_originated, :loan_volume, :loans_repaid, :loans_refinanced,
		 :loans_forgiven, :loans_defaulted,
		 :infections, :decision_downgrades, :gini, :culture_entropy, :moran_i)`,
		tickRow{RunID: db.runID, TickStats: stats})
	if err != nil {
		return fmt.Errorf("record tick %d: %w", stats.Tick, err)
	}
	return nil
}

// RecordAgents snapshots the whole population at a tick. Expensive; gated by
// the record_agents config flag.
func (db *DB) RecordAgents(tick uint64, list []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO agent_records
		(run_id, tick, agent_id, x, y, age, sugar, vision, metabolism, tribe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range list {
		tribe := 0
		if len(a.Culture) > 0 {
			tribe = a.Tribe()
		}
		if _, err := stmt.Exec(
			db.runID, tick, a.ID, a.Position.X, a.Position.Y,
			a.Age, a.Sugar, a.Vision, a.Metabolism, tribe,
		); err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends events for the current run.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			db.runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RunStats returns the recorded tick statistics of a run in tick order.
func (db *DB) RunStats(runID string) ([]engine.TickStats, error) {
	var stats []engine.TickStats
	err := db.conn.Select(&stats, `SELECT
		tick, population, total_wealth, grid_sugar, births,
		deaths_starvation, deaths_old_age, deaths_combat,
		combat_kills, combat_stolen,
		loans_originated, loan_volume, loans_repaid, loans_refinanced,
		loans_forgiven, loans_defaulted,
		infections, decision_downgrades, gini, culture_entropy, moran_i
		FROM tick_stats WHERE run_id = ? ORDER BY tick`, runID)
	return stats, err
}

// RecentEvents returns the most recent N events of the current run.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		db.runID, limit,
	)
	return events, err
}
