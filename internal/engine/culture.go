package engine

import (
	"math"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/grid"
)

// culturePhase runs one tag-flip attempt per agent per tick: pick one random
// adjacent neighbor and one random tag index; if the neighbor's bit differs,
// flip it to match the agent's.
func (s *Simulation) culturePhase() {
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive {
			continue
		}
		neighbors := s.adjacentAgents(a.Position)
		if len(neighbors) == 0 {
			continue
		}
		b := neighbors[s.Rng.Intn(len(neighbors))]
		i := s.Rng.Intn(len(a.Culture))
		if b.Culture[i] != a.Culture[i] {
			b.Culture[i] = a.Culture[i]
		}
	}
}

// adjacentAgents returns the agents on the von Neumann neighbors of p, in
// the fixed adjacency order.
func (s *Simulation) adjacentAgents(p grid.Point) []*agents.Agent {
	var out []*agents.Agent
	for _, q := range p.Adjacent() {
		if !s.Grid.InBounds(q) {
			continue
		}
		if b := s.Registry.At(q); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// cultureEntropy is the mean Shannon entropy across tag positions: 0 when
// every agent agrees on every bit, 1 when every position is an even split.
func (s *Simulation) cultureEntropy() float64 {
	live := s.Registry.Live()
	if len(live) == 0 || !s.Cfg.Culture.Enabled {
		return 0
	}
	tagLen := s.Cfg.Culture.TagLength
	ones := make([]int, tagLen)
	for _, a := range live {
		for i, bit := range a.Culture {
			if bit {
				ones[i]++
			}
		}
	}
	total := 0.0
	n := float64(len(live))
	for _, c := range ones {
		p := float64(c) / n
		if p > 0 && p < 1 {
			total += -p*math.Log2(p) - (1-p)*math.Log2(1-p)
		}
	}
	return total / float64(tagLen)
}
