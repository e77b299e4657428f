// Simulation ties together the grid, the population registry, the loan
// ledger, and the decision provider, and runs the rule phases each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/decision"
	"github.com/talgya/sugarscape/internal/grid"
)

// Simulation holds the complete mutable state. It is the single owner of the
// grid, registry, and ledger; phases receive it by reference and no
// concurrent writers exist.
type Simulation struct {
	Cfg      *config.Config
	Grid     *grid.Grid
	Registry *agents.Registry
	Spawner  *agents.Spawner
	Ledger   *Ledger
	Provider decision.Provider
	Rng      *rand.Rand

	Tick   uint64
	Stats  TickStats // current tick, reset at the top of Step
	Events []Event   // recent events, trimmed periodically

	status atomic.Pointer[Status]
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "death", "birth", "combat", "credit", ...
}

// TickStats aggregates one tick's scalar summaries. These are what the
// metrics sink records.
type TickStats struct {
	Tick uint64 `json:"tick" db:"tick"`

	Population  int `json:"population" db:"population"`
	TotalWealth int `json:"total_wealth" db:"total_wealth"`
	GridSugar   int `json:"grid_sugar" db:"grid_sugar"`

	Births           int `json:"births" db:"births"`
	DeathsStarvation int `json:"deaths_starvation" db:"deaths_starvation"`
	DeathsOldAge     int `json:"deaths_old_age" db:"deaths_old_age"`
	DeathsCombat     int `json:"deaths_combat" db:"deaths_combat"`

	CombatKills  int `json:"combat_kills" db:"combat_kills"`
	CombatStolen int `json:"combat_stolen" db:"combat_stolen"`

	LoansOriginated int `json:"loans_originated" db:"loans_originated"`
	LoanVolume      int `json:"loan_volume" db:"loan_volume"`
	LoansRepaid     int `json:"loans_repaid" db:"loans_repaid"`
	LoansRefinanced int `json:"loans_refinanced" db:"loans_refinanced"`
	LoansForgiven   int `json:"loans_forgiven" db:"loans_forgiven"`
	LoansDefaulted  int `json:"loans_defaulted" db:"loans_defaulted"`

	Infections         int `json:"infections" db:"infections"`
	DecisionDowngrades int `json:"decision_downgrades" db:"decision_downgrades"`

	Gini           float64 `json:"gini" db:"gini"`
	CultureEntropy float64 `json:"culture_entropy" db:"culture_entropy"`
	MoranI         float64 `json:"moran_i" db:"moran_i"`
}

// Status is the read-only snapshot published after every tick for external
// observers (the HTTP API reads it without touching live state). The agent
// and event lists are filled only when the API is enabled.
type Status struct {
	Tick        uint64    `json:"tick"`
	Population  int       `json:"population"`
	TotalWealth int       `json:"total_wealth"`
	ActiveLoans int       `json:"active_loans"`
	Stats       TickStats `json:"stats"`
	UpdatedAt   time.Time `json:"updated_at"`

	Agents []AgentSummary `json:"agents,omitempty"`
	Events []Event        `json:"events,omitempty"`
}

// AgentSummary is the per-agent slice of a Status snapshot.
type AgentSummary struct {
	ID         agents.AgentID `json:"id"`
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Age        int            `json:"age"`
	Sugar      int            `json:"sugar"`
	Vision     int            `json:"vision"`
	Metabolism int            `json:"metabolism"`
	Tribe      int            `json:"tribe"`
	Diseases   int            `json:"diseases"`
}

// New builds a simulation from a validated configuration: generates the
// landscape, seeds the population at random empty cells, and wires the
// decision provider.
func New(cfg *config.Config) (*Simulation, error) {
	g, err := grid.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return nil, err
	}
	g.GrowbackRate = cfg.Grid.GrowbackRate
	g.Seasons = cfg.Grid.Seasons
	g.SeasonLength = cfg.Grid.SeasonLength
	g.WinterDivisor = cfg.Grid.WinterDivisor
	g.PollutionOn = cfg.Grid.Pollution
	g.ProductionRate = cfg.Grid.ProductionRate
	g.ConsumptionRate = cfg.Grid.ConsumptionRate

	switch cfg.Grid.Landscape {
	case "noise":
		g.GenerateNoise(cfg.Seed, cfg.Grid.MaxCapacity)
	default:
		peaks := make([]grid.Peak, 0, len(cfg.Grid.Peaks))
		for _, p := range cfg.Grid.Peaks {
			peaks = append(peaks, grid.Peak{X: p.X, Y: p.Y, Radius: p.Radius})
		}
		if len(peaks) == 0 {
			peaks = grid.DefaultPeaks(g.W, g.H)
		}
		g.GeneratePeaks(peaks, cfg.Grid.MaxCapacity)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	reg := agents.NewRegistry()
	sp := agents.NewSpawner(cfg, rng)

	sim := &Simulation{
		Cfg:      cfg,
		Grid:     g,
		Registry: reg,
		Spawner:  sp,
		Rng:      rng,
		Ledger:   NewLedger(cfg.Credit.Rate, cfg.Credit.Duration),
	}

	if cfg.Reproduction.Enabled {
		// Lender death reassigns outstanding loans to living children.
		sim.Ledger.ReassignHook = sim.livingChildren
	}

	switch cfg.Decision.Provider {
	case "remote":
		sim.Provider = decision.NewRemote(cfg.Decision.Endpoint,
			time.Duration(cfg.Decision.TimeoutMs)*time.Millisecond)
	default:
		sim.Provider = decision.NewGreedy()
	}

	for i := 0; i < cfg.Population.Size; i++ {
		pos, ok := reg.RandomEmptyCell(g, rng)
		if !ok {
			return nil, fmt.Errorf("engine: no empty cell for agent %d", i)
		}
		a := sp.SpawnRandom(reg.NextID(), pos)
		if err := reg.Add(a); err != nil {
			return nil, fmt.Errorf("engine: seed population: %w", err)
		}
	}

	sim.publishStatus()
	return sim, nil
}

// Step advances the simulation by one tick: the configured phase sequence,
// then the death pass, then metrics.
func (s *Simulation) Step() {
	s.Tick++
	s.Stats = TickStats{Tick: s.Tick}

	for _, phase := range s.Cfg.Phases {
		switch phase {
		case "growback":
			s.Grid.Growback(s.Tick)
			if s.Cfg.Grid.Pollution && s.Tick%uint64(s.Cfg.Grid.DiffusionInterval) == 0 {
				s.Grid.DiffusePollution()
			}
		case "combat":
			if s.Cfg.Combat.Enabled {
				s.combatPhase()
			}
		case "movement":
			s.movementPhase()
		case "reproduction":
			if s.Cfg.Reproduction.Enabled {
				s.reproductionPhase()
			}
		case "culture":
			if s.Cfg.Culture.Enabled {
				s.culturePhase()
			}
		case "credit":
			if s.Cfg.Credit.Enabled {
				s.creditPhase()
			}
		case "disease":
			if s.Cfg.Disease.Enabled {
				s.diseasePhase()
			}
		}
		if s.Cfg.DebugChecks {
			s.checkInvariants(phase)
		}
	}

	s.deathPass()
	s.computeMetrics()
	s.publishStatus()

	if s.Cfg.Metrics.LogInterval > 0 && s.Tick%uint64(s.Cfg.Metrics.LogInterval) == 0 {
		slog.Info("tick report",
			"tick", s.Tick,
			"population", s.Stats.Population,
			"wealth", s.Stats.TotalWealth,
			"gini", fmt.Sprintf("%.3f", s.Stats.Gini),
			"births", s.Stats.Births,
			"deaths_starved", s.Stats.DeathsStarvation,
			"deaths_age", s.Stats.DeathsOldAge,
			"deaths_combat", s.Stats.DeathsCombat,
			"loans", s.Ledger.Count(),
			"downgrades", s.Stats.DecisionDowngrades,
		)
	}
	if len(s.Events) > 1000 {
		s.Events = s.Events[len(s.Events)-1000:]
	}
}

// decide consults the provider. A provider error falls back to the built-in
// greedy rule; the downgrade is counted, never fatal.
func (s *Simulation) decide(req decision.Request) decision.Decision {
	d, err := s.Provider.Decide(req)
	if err != nil {
		s.Stats.DecisionDowngrades++
		slog.Debug("decision provider failed, using greedy fallback",
			"phase", req.Phase, "agent", req.AgentID, "error", err)
		d, _ = decision.NewGreedy().Decide(req)
	}
	return d
}

// deathPass evaluates the death condition for the whole population, then
// removes the dying: inheritance first, loan dispersal second, removal last.
// Two co-dying parents therefore never inherit from each other.
func (s *Simulation) deathPass() {
	var dying []*agents.Agent
	dyingSet := make(map[agents.AgentID]bool)
	for _, a := range s.Registry.Live() {
		if a.Sugar <= 0 || a.Age >= a.MaxAge {
			dying = append(dying, a)
			dyingSet[a.ID] = true
		}
	}

	for _, a := range dying {
		cause := "starvation"
		if a.Age >= a.MaxAge {
			cause = "old age"
			s.Stats.DeathsOldAge++
		} else {
			s.Stats.DeathsStarvation++
		}

		if s.Cfg.Reproduction.Enabled {
			s.inherit(a, dyingSet)
		}
		s.Ledger.Disperse(a.ID, &s.Stats)
		s.Registry.Remove(a.ID, s.idInUse)

		s.Events = append(s.Events, Event{
			Tick:        s.Tick,
			Description: fmt.Sprintf("agent %d died of %s at age %d", a.ID, cause, a.Age),
			Category:    "death",
		})

		if s.Cfg.Reproduction.Replacement {
			if pos, ok := s.Registry.RandomEmptyCell(s.Grid, s.Rng); ok {
				r := s.Spawner.SpawnReplacement(s.Registry.NextID(), pos)
				if err := s.Registry.Add(r); err == nil {
					s.Stats.Births++
				}
			}
		}
	}
}

// idInUse reports whether a dead agent's identifier must not be reissued
// yet: an outstanding loan names it, or a live parent still lists it among
// its children. Reissuing such an id would let a stranger pass for the dead
// child in inheritance and loan reassignment.
func (s *Simulation) idInUse(id agents.AgentID) bool {
	if s.Ledger.References(id) {
		return true
	}
	for _, a := range s.Registry.Live() {
		for _, cid := range a.Children {
			if cid == id {
				return true
			}
		}
	}
	return false
}

// livingChildren returns the ids of an agent's currently-live children.
// Installed as the ledger's reassignment hook when reproduction is enabled.
func (s *Simulation) livingChildren(id agents.AgentID) []agents.AgentID {
	a := s.Registry.Get(id)
	if a == nil {
		return nil
	}
	var kids []agents.AgentID
	for _, cid := range a.Children {
		if c := s.Registry.Get(cid); c != nil && c.Alive {
			kids = append(kids, cid)
		}
	}
	return kids
}

func (s *Simulation) publishStatus() {
	st := &Status{
		Tick:        s.Tick,
		Population:  s.Registry.Count(),
		TotalWealth: s.Stats.TotalWealth,
		ActiveLoans: s.Ledger.Count(),
		Stats:       s.Stats,
		UpdatedAt:   time.Now(),
	}
	if s.Cfg.API.Enabled {
		live := s.Registry.Live()
		st.Agents = make([]AgentSummary, 0, len(live))
		for _, a := range live {
			sum := AgentSummary{
				ID: a.ID, X: a.Position.X, Y: a.Position.Y,
				Age: a.Age, Sugar: a.Sugar,
				Vision: a.Vision, Metabolism: a.Metabolism,
				Diseases: len(a.Diseases),
			}
			if len(a.Culture) > 0 {
				sum.Tribe = a.Tribe()
			}
			st.Agents = append(st.Agents, sum)
		}
		n := len(s.Events)
		if n > 50 {
			n = 50
		}
		st.Events = append(st.Events, s.Events[len(s.Events)-n:]...)
	}
	s.status.Store(st)
}

// CurrentStatus returns the snapshot published at the last tick boundary.
// Safe to call from other goroutines.
func (s *Simulation) CurrentStatus() *Status {
	return s.status.Load()
}
