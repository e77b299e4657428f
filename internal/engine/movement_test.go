package engine

import (
	"testing"

	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/grid"
)

func TestMovementPicksRichestCell(t *testing.T) {
	sim := bareSim(t, 7, 7, nil)
	a := place(t, sim, 1, 3, 3)
	setSugar(sim, 3, 5, 4) // distance 2
	setSugar(sim, 3, 2, 2) // distance 1, poorer

	sim.movementPhase()

	if a.Position != (grid.Point{X: 3, Y: 5}) {
		t.Fatalf("agent at %v, want the richest visible cell (3,5)", a.Position)
	}
	if sim.Grid.At(grid.Point{X: 3, Y: 5}).Sugar != 0 {
		t.Fatal("harvested cell must hold exactly 0 sugar")
	}
	if a.Sugar != 20+4-1 {
		t.Fatalf("agent sugar %d, want 23 (harvest 4, metabolism 1)", a.Sugar)
	}
	if a.Age != 1 {
		t.Fatalf("age %d, want incremented to 1", a.Age)
	}
	if a.LastHarvest != 4 {
		t.Fatalf("last harvest %d, want 4", a.LastHarvest)
	}
}

func TestMovementTieBreaksToNearest(t *testing.T) {
	sim := bareSim(t, 7, 7, nil)
	a := place(t, sim, 1, 3, 3)
	setSugar(sim, 3, 5, 4) // distance 2
	setSugar(sim, 4, 3, 4) // distance 1, equal sugar

	sim.movementPhase()

	if a.Position != (grid.Point{X: 4, Y: 3}) {
		t.Fatalf("agent at %v, want the nearest of the equal-sugar cells (4,3)", a.Position)
	}
}

func TestMovementSkipsOccupiedCells(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	a := place(t, sim, 1, 2, 2)
	blocker := place(t, sim, 2, 2, 3)
	blocker.Vision = 0 // keep the blocker parked
	setSugar(sim, 2, 3, 4)
	setSugar(sim, 2, 1, 2)

	// Force a deterministic order: process only agent 1's view by checking
	// the candidate set directly.
	var scratch []grid.Point
	req := sim.movementRequest(a, &scratch)
	for _, c := range req.Candidates {
		if c.Target == blocker.Position {
			t.Fatal("occupied cell must not be a movement candidate")
		}
	}
}

func TestMovementCardinalShapeCannotSeeDiagonal(t *testing.T) {
	sim := bareSim(t, 5, 5, func(cfg *config.Config) {
		cfg.Population.VisionShape = "cardinal"
	})
	a := place(t, sim, 1, 2, 2)
	setSugar(sim, 3, 3, 4) // diagonal, invisible under cardinal rays
	setSugar(sim, 2, 4, 1)

	sim.movementPhase()

	if a.Position != (grid.Point{X: 2, Y: 4}) {
		t.Fatalf("agent at %v, want cardinal-visible (2,4)", a.Position)
	}
}

// Scenario: a small world, movement only — positions stay distinct and the
// population's harvest equals the sugar that left the grid.
func TestMovementOnlyWorldConservesSugar(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid.Width, cfg.Grid.Height = 5, 5
	cfg.Grid.MaxCapacity = 4
	cfg.Population.Size = 10
	cfg.Phases = []string{"movement"}
	cfg.Reproduction.Enabled = false
	cfg.Culture.Enabled = false
	cfg.Credit.Enabled = false
	cfg.Disease.Enabled = false
	cfg.DebugChecks = true
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	sim, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	before := sim.Grid.TotalSugar()

	sim.Step()

	after := sim.Grid.TotalSugar()
	harvested := 0
	seen := make(map[grid.Point]bool)
	for _, a := range sim.Registry.Live() {
		if seen[a.Position] {
			t.Fatalf("two agents share cell %v", a.Position)
		}
		seen[a.Position] = true
		harvested += a.LastHarvest
	}
	if harvested != before-after {
		t.Fatalf("agents harvested %d but the grid lost %d", harvested, before-after)
	}
}

func TestInvalidProviderMoveDowngradesToIdle(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	sim.Provider = fixedMoveProvider{target: grid.Point{X: 4, Y: 4}} // out of vision
	a := place(t, sim, 1, 0, 0)
	setSugar(sim, 1, 0, 3)

	sim.movementPhase()

	if a.Position != (grid.Point{X: 0, Y: 0}) {
		t.Fatalf("invalid target must downgrade to idle, agent at %v", a.Position)
	}
	if sim.Stats.DecisionDowngrades != 1 {
		t.Fatalf("downgrades %d, want 1", sim.Stats.DecisionDowngrades)
	}
	// Idle still harvests the own cell and metabolizes.
	if a.Age != 1 {
		t.Fatal("idle agent must still age")
	}
}
