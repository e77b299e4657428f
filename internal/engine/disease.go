package engine

import (
	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/bitset"
)

// diseasePhase runs transmission, then each agent's immune response.
func (s *Simulation) diseasePhase() {
	s.transmitDiseases()
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if a.Alive {
			s.immuneResponse(a)
		}
	}
}

// transmitDiseases has every infected neighbor contribute one randomly
// chosen disease from its own set to the agent. The disease set is a set:
// duplicate bit sequences collapse.
func (s *Simulation) transmitDiseases() {
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive {
			continue
		}
		for _, b := range s.adjacentAgents(a.Position) {
			if len(b.Diseases) == 0 {
				continue
			}
			d := b.Diseases[s.Rng.Intn(len(b.Diseases))]
			if !a.HasDisease(d) {
				a.AddDisease(d)
				s.Stats.Infections++
			}
		}
	}
}

// immuneResponse advances the agent's immune system one mutation step per
// active infection and charges the per-infection sugar penalty.
//
// A disease that is a substring of the immunity sequence is inert: it costs
// nothing and never mutates immunity, but it is retained so the agent stays
// a carrier. The penalty is judged against the immunity state as it stood
// before this tick's mutations, so a disease cured by this tick's flip
// still costs this tick.
func (s *Simulation) immuneResponse(a *agents.Agent) {
	if len(a.Diseases) == 0 {
		return
	}
	before := a.Immunity.Clone()

	uncured := 0
	for _, d := range a.Diseases {
		if !bitset.Contains(before, d) {
			uncured++
		}
	}

	for _, d := range a.Diseases {
		if bitset.Contains(a.Immunity, d) {
			continue
		}
		off, _ := bitset.BestMatch(a.Immunity, d)
		if off < 0 {
			continue
		}
		// Flip the first mismatched bit of the best-matching window.
		for i := range d {
			if a.Immunity[off+i] != d[i] {
				a.Immunity[off+i] = d[i]
				break
			}
		}
	}

	a.Sugar -= uncured * s.Cfg.Disease.Penalty
}
