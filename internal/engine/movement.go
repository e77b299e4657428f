package engine

import (
	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/decision"
	"github.com/talgya/sugarscape/internal/grid"
)

// movementPhase relocates every agent greedily. Agents are visited in a
// fresh random permutation; each agent's candidate set reflects occupancy at
// the moment it is scheduled, so later agents see earlier claims.
func (s *Simulation) movementPhase() {
	var scratch []grid.Point
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive || a.MovedTick == s.Tick {
			continue
		}
		scratch = scratch[:0]
		req := s.movementRequest(a, &scratch)
		d := s.decide(req)

		target := a.Position
		if d.Move != nil {
			if decision.ValidMove(req, *d.Move) {
				target = *d.Move
			} else {
				// Malformed or out-of-range target: downgrade to idle.
				s.Stats.DecisionDowngrades++
			}
		}
		s.applyMove(a, target)
	}
}

// movementRequest builds the decision request: the agent's own cell plus
// every unoccupied visible cell, each scored by welfare.
func (s *Simulation) movementRequest(a *agents.Agent, scratch *[]grid.Point) decision.Request {
	shape := s.Cfg.Shape()
	cands := []decision.Candidate{{
		Target:   a.Position,
		Reward:   s.Grid.Welfare(a.Position),
		Distance: 0,
	}}
	*scratch = s.Grid.Visible((*scratch)[:0], a.Position, a.Vision, shape)
	for _, p := range *scratch {
		if s.Registry.Occupied(p) {
			continue
		}
		cands = append(cands, decision.Candidate{
			Target:   p,
			Reward:   s.Grid.Welfare(p),
			Distance: grid.Dist(a.Position, p),
		})
	}
	return decision.Request{
		Phase:      decision.PhaseMovement,
		Tick:       s.Tick,
		AgentID:    uint64(a.ID),
		Position:   a.Position,
		Sugar:      a.Sugar,
		Vision:     a.Vision,
		Candidates: cands,
		Traits:     a.Traits,
	}
}

// applyMove relocates the agent (a no-op target is an idle stay), harvests
// the destination, charges metabolism, and ages the agent by one tick.
func (s *Simulation) applyMove(a *agents.Agent, target grid.Point) {
	if err := s.Registry.Move(a, target); err != nil {
		// Destination was claimed between candidate construction and apply;
		// cannot happen with sequential scheduling, but stay put if it does.
		target = a.Position
	}
	taken := s.Grid.Harvest(target, a.Metabolism)
	a.LastHarvest = taken
	a.Sugar += taken - a.Metabolism
	a.Age++
	a.MovedTick = s.Tick
}
