package engine

import (
	"fmt"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/decision"
	"github.com/talgya/sugarscape/internal/grid"
)

// combatSnapshot freezes positions, wealth, tribes, and vision at phase
// start. The retaliation-safety check reads this snapshot, not live state,
// so every agent judges safety against the same world.
type combatSnapshot struct {
	pos    map[agents.AgentID]grid.Point
	sugar  map[agents.AgentID]int
	tribe  map[agents.AgentID]int
	vision map[agents.AgentID]int
}

func (s *Simulation) snapshotCombat() *combatSnapshot {
	live := s.Registry.Live()
	snap := &combatSnapshot{
		pos:    make(map[agents.AgentID]grid.Point, len(live)),
		sugar:  make(map[agents.AgentID]int, len(live)),
		tribe:  make(map[agents.AgentID]int, len(live)),
		vision: make(map[agents.AgentID]int, len(live)),
	}
	for _, a := range live {
		snap.pos[a.ID] = a.Position
		snap.sugar[a.ID] = a.Sugar
		snap.tribe[a.ID] = a.Tribe()
		snap.vision[a.ID] = a.Vision
	}
	return snap
}

// combatPhase extends movement: occupied cells whose occupant belongs to a
// different tribe and is strictly poorer become candidates, rewarded by the
// cell welfare plus the capped victim wealth, unless taking them would leave
// the attacker exposed to a stronger same-tribe avenger.
func (s *Simulation) combatPhase() {
	snap := s.snapshotCombat()
	var scratch []grid.Point

	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive || a.MovedTick == s.Tick {
			continue
		}
		scratch = scratch[:0]
		req := s.combatRequest(a, snap, &scratch)
		d := s.decide(req)

		target := a.Position
		if d.Move != nil {
			if decision.ValidMove(req, *d.Move) {
				target = *d.Move
			} else {
				s.Stats.DecisionDowngrades++
			}
		}

		if victim := s.Registry.At(target); victim != nil && victim != a {
			loot := min(s.Cfg.Combat.Limit, victim.Sugar)
			s.kill(a, victim)
			s.applyMove(a, target)
			a.Sugar += loot
		} else {
			s.applyMove(a, target)
		}
	}
}

// combatRequest builds candidates: own cell, unoccupied visible cells, and
// eligible kill targets that pass the retaliation-safety check.
func (s *Simulation) combatRequest(a *agents.Agent, snap *combatSnapshot, scratch *[]grid.Point) decision.Request {
	shape := s.Cfg.Shape()
	myTribe := a.Tribe()
	cands := []decision.Candidate{{
		Target:   a.Position,
		Reward:   s.Grid.Welfare(a.Position),
		Distance: 0,
	}}
	*scratch = s.Grid.Visible((*scratch)[:0], a.Position, a.Vision, shape)
	for _, p := range *scratch {
		occ := s.Registry.At(p)
		if occ == nil {
			cands = append(cands, decision.Candidate{
				Target:   p,
				Reward:   s.Grid.Welfare(p),
				Distance: grid.Dist(a.Position, p),
			})
			continue
		}
		if occ.Tribe() == myTribe || occ.Sugar >= a.Sugar {
			continue
		}
		// Same objective as empty cells: welfare, plus the capped loot.
		reward := s.Grid.Welfare(p) + float64(min(s.Cfg.Combat.Limit, occ.Sugar))
		if s.vulnerableToRetaliation(a, occ, p, reward, snap) {
			continue
		}
		cands = append(cands, decision.Candidate{
			Target:   p,
			Reward:   reward,
			Distance: grid.Dist(a.Position, p),
			Occupied: true,
		})
	}
	return decision.Request{
		Phase:      decision.PhaseCombat,
		Tick:       s.Tick,
		AgentID:    uint64(a.ID),
		Position:   a.Position,
		Sugar:      a.Sugar,
		Vision:     a.Vision,
		Candidates: cands,
		Traits:     a.Traits,
	}
}

// vulnerableToRetaliation reports whether, after hypothetically taking cell
// p and its reward, some other member of the victim's tribe within the
// victim's own vision of p would be wealthier than the attacker. Positions
// and wealth are read from the phase-start snapshot.
func (s *Simulation) vulnerableToRetaliation(a, victim *agents.Agent, p grid.Point, reward float64, snap *combatSnapshot) bool {
	postKill := float64(a.Sugar) + reward
	victimTribe := snap.tribe[victim.ID]
	vision := snap.vision[victim.ID]
	shape := s.Cfg.Shape()

	avengerCells := s.Grid.Visible(nil, p, vision, shape)
	for id, pos := range snap.pos {
		if id == a.ID || id == victim.ID {
			continue
		}
		if snap.tribe[id] != victimTribe {
			continue
		}
		if float64(snap.sugar[id]) <= postKill {
			continue
		}
		for _, c := range avengerCells {
			if c == pos {
				return true
			}
		}
	}
	return false
}

// kill removes the victim: its loans are dispersed (lender forgiveness or
// borrower default), then the registry frees its cell and id. The victim's
// wealth transfer to the attacker is handled by the caller.
func (s *Simulation) kill(attacker, victim *agents.Agent) {
	s.Stats.DeathsCombat++
	s.Stats.CombatKills++
	s.Stats.CombatStolen += min(s.Cfg.Combat.Limit, victim.Sugar)

	s.Ledger.Disperse(victim.ID, &s.Stats)
	s.Registry.Remove(victim.ID, s.idInUse)

	s.Events = append(s.Events, Event{
		Tick:        s.Tick,
		Description: fmt.Sprintf("agent %d killed agent %d", attacker.ID, victim.ID),
		Category:    "combat",
	})
}
