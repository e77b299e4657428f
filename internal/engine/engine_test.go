package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/bitset"
	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/decision"
	"github.com/talgya/sugarscape/internal/grid"
)

// bareSim builds a simulation over an empty zero-capacity lattice with no
// agents, so tests can stage exact scenarios. Tick starts at 1.
func bareSim(t *testing.T, w, h int, mut func(*config.Config)) *Simulation {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	cfg.Grid.Width, cfg.Grid.Height = w, h
	cfg.Population.Size = 1
	cfg.DebugChecks = true
	if mut != nil {
		mut(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	g, err := grid.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	g.GrowbackRate = cfg.Grid.GrowbackRate

	rng := rand.New(rand.NewSource(cfg.Seed))
	sim := &Simulation{
		Cfg:      cfg,
		Grid:     g,
		Registry: agents.NewRegistry(),
		Rng:      rng,
		Ledger:   NewLedger(cfg.Credit.Rate, cfg.Credit.Duration),
		Provider: decision.NewGreedy(),
		Tick:     1,
	}
	sim.Spawner = agents.NewSpawner(cfg, rng)
	if cfg.Reproduction.Enabled {
		sim.Ledger.ReassignHook = sim.livingChildren
	}
	return sim
}

// place registers an agent with sane defaults at (x, y). Ids are drawn from
// the registry so later births do not collide; the expected id keeps call
// sites readable.
func place(t *testing.T, sim *Simulation, id agents.AgentID, x, y int) *agents.Agent {
	t.Helper()
	if got := sim.Registry.NextID(); got != id {
		t.Fatalf("next id %d, expected %d", got, id)
	}
	a := &agents.Agent{
		ID:           id,
		Position:     grid.Point{X: x, Y: y},
		Vision:       2,
		Metabolism:   1,
		MaxAge:       100,
		Sugar:        20,
		InitialSugar: 20,
		LastHarvest:  2,
		Alive:        true,
	}
	if sim.Cfg.Culture.Enabled || sim.Cfg.Combat.Enabled {
		a.Culture = bitset.New(sim.Cfg.Culture.TagLength)
	}
	if sim.Cfg.Disease.Enabled {
		a.Immunity = bitset.New(sim.Cfg.Disease.ImmunityLength)
	}
	if err := sim.Registry.Add(a); err != nil {
		t.Fatalf("place agent %d: %v", id, err)
	}
	return a
}

// setSugar sets both capacity and sugar of a cell.
func setSugar(sim *Simulation, x, y, amount int) {
	c := sim.Grid.At(grid.Point{X: x, Y: y})
	c.Capacity = amount
	c.Sugar = amount
}

// fixedMoveProvider always answers with the same move target.
type fixedMoveProvider struct{ target grid.Point }

func (p fixedMoveProvider) Decide(req decision.Request) (decision.Decision, error) {
	t := p.target
	return decision.Decision{Move: &t}, nil
}

// failingProvider simulates a broken remote provider.
type failingProvider struct{}

func (failingProvider) Decide(req decision.Request) (decision.Decision, error) {
	return decision.Decision{}, errDown
}

var errDown = fmt.Errorf("provider down")

func bits(s string) bitset.Bits {
	b := make(bitset.Bits, len(s))
	for i, c := range s {
		b[i] = c == '1'
	}
	return b
}
