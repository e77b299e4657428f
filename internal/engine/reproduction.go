package engine

import (
	"fmt"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/decision"
	"github.com/talgya/sugarscape/internal/grid"
)

// fertilityWindow returns the sex-specific fertility window.
func (s *Simulation) fertilityWindow(sex agents.Sex) config.Window {
	if sex == agents.SexFemale {
		return s.Cfg.Reproduction.FertilityFemale
	}
	return s.Cfg.Reproduction.FertilityMale
}

// fertile reports whether the agent is in its fertility window and holds at
// least its birth endowment.
func (s *Simulation) fertile(a *agents.Agent) bool {
	return s.fertilityWindow(a.Sex).Contains(a.Age) && a.Sugar >= a.InitialSugar
}

// postFertile reports whether the agent has aged past its fertility window.
func (s *Simulation) postFertile(a *agents.Agent) bool {
	return a.Age > s.fertilityWindow(a.Sex).End
}

// reproductionPhase pairs fertile agents with eligible visible partners.
// Each agent courts at most MaxPartners per tick; the provider chooses among
// the eligible set, offered in a fresh random order.
func (s *Simulation) reproductionPhase() {
	var scratch []grid.Point
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive || !s.fertile(a) {
			continue
		}

		partners := s.eligiblePartners(a, &scratch)
		if len(partners) == 0 {
			continue
		}
		ids := make([]uint64, len(partners))
		for i, p := range partners {
			ids[i] = uint64(p.ID)
		}
		req := decision.Request{
			Phase:    decision.PhaseReproduction,
			Tick:     s.Tick,
			AgentID:  uint64(a.ID),
			Position: a.Position,
			Sugar:    a.Sugar,
			Vision:   a.Vision,
			Partners: ids,
			Traits:   a.Traits,
		}
		d := s.decide(req)
		chosen := decision.FilterPartners(req, d.Partners)
		if len(d.Partners) > len(chosen) {
			s.Stats.DecisionDowngrades++
		}

		births := 0
		for _, pid := range chosen {
			if births >= s.Cfg.Reproduction.MaxPartners {
				break
			}
			partner := s.Registry.Get(agents.AgentID(pid))
			if partner == nil || !partner.Alive {
				continue
			}
			// Re-validate at the moment of action: both must still be
			// fertile, and a birth cell must still exist.
			if !s.fertile(a) || !s.fertile(partner) {
				continue
			}
			if s.reproduce(a, partner) {
				births++
			}
		}
	}
}

// eligiblePartners collects visible agents of opposite sex that are fertile
// and share an empty adjacent cell with either party, in a fresh random
// order.
func (s *Simulation) eligiblePartners(a *agents.Agent, scratch *[]grid.Point) []*agents.Agent {
	shape := s.Cfg.Shape()
	var out []*agents.Agent
	*scratch = s.Grid.Visible((*scratch)[:0], a.Position, a.Vision, shape)
	for _, p := range *scratch {
		b := s.Registry.At(p)
		if b == nil || b.Sex == a.Sex || !s.fertile(b) {
			continue
		}
		if !s.hasEmptyAdjacent(a.Position) && !s.hasEmptyAdjacent(b.Position) {
			continue
		}
		out = append(out, b)
	}
	s.Rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func (s *Simulation) hasEmptyAdjacent(p grid.Point) bool {
	for _, q := range p.Adjacent() {
		if s.Grid.InBounds(q) && !s.Registry.Occupied(q) {
			return true
		}
	}
	return false
}

// birthCell returns the first empty cell adjacent to either parent, scanning
// in the fixed adjacency order for reproducibility.
func (s *Simulation) birthCell(a, b *agents.Agent) (grid.Point, bool) {
	for _, parent := range [2]grid.Point{a.Position, b.Position} {
		for _, q := range parent.Adjacent() {
			if s.Grid.InBounds(q) && !s.Registry.Occupied(q) {
				return q, true
			}
		}
	}
	return grid.Point{}, false
}

// reproduce places a child adjacent to either parent. Each parent endows the
// child with half of the lesser of its current sugar and its own birth
// endowment; the child's endowment becomes its reproduction threshold.
func (s *Simulation) reproduce(a, b *agents.Agent) bool {
	pos, ok := s.birthCell(a, b)
	if !ok {
		return false
	}
	mother, father := a, b
	if mother.Sex != agents.SexFemale {
		mother, father = b, a
	}
	child := s.Spawner.SpawnChild(s.Registry.NextID(), pos, mother, father)

	endow := 0
	for _, parent := range [2]*agents.Agent{a, b} {
		share := min(parent.Sugar, parent.InitialSugar) / 2
		parent.Sugar -= share
		endow += share
	}
	child.Sugar = endow
	child.InitialSugar = endow

	if err := s.Registry.Add(child); err != nil {
		// Give the endowment back; the cell was validated just above, so
		// this indicates an engine defect and debug checks will catch it.
		a.Sugar += endow / 2
		b.Sugar += endow - endow/2
		return false
	}
	a.Children = append(a.Children, child.ID)
	b.Children = append(b.Children, child.ID)
	s.Stats.Births++
	s.Events = append(s.Events, Event{
		Tick:        s.Tick,
		Description: fmt.Sprintf("agent %d born to %d and %d", child.ID, a.ID, b.ID),
		Category:    "birth",
	})
	return true
}

// inherit splits a dying agent's sugar equally among its currently-living
// children by integer division; the remainder is dropped. Children dying in
// the same tick are excluded. Runs before the agent's loans are dispersed.
func (s *Simulation) inherit(dying *agents.Agent, dyingSet map[agents.AgentID]bool) {
	if dying.Sugar <= 0 {
		return
	}
	var heirs []*agents.Agent
	for _, cid := range dying.Children {
		if dyingSet[cid] {
			continue
		}
		if c := s.Registry.Get(cid); c != nil && c.Alive {
			heirs = append(heirs, c)
		}
	}
	if len(heirs) == 0 {
		return
	}
	share := dying.Sugar / len(heirs)
	if share == 0 {
		return
	}
	for _, h := range heirs {
		h.Sugar += share
	}
	dying.Sugar -= share * len(heirs)
}
