package engine

import (
	"fmt"
	"sort"

	"github.com/talgya/sugarscape/internal/grid"
)

// computeMetrics fills the tick's scalar summaries from live state.
func (s *Simulation) computeMetrics() {
	live := s.Registry.Live()
	wealth := make([]float64, 0, len(live))
	total := 0
	for _, a := range live {
		wealth = append(wealth, float64(a.Sugar))
		total += a.Sugar
	}
	s.Stats.Population = len(live)
	s.Stats.TotalWealth = total
	s.Stats.GridSugar = s.Grid.TotalSugar()
	s.Stats.Gini = Gini(wealth)
	s.Stats.CultureEntropy = s.cultureEntropy()
	s.Stats.MoranI = s.moranWealth()
}

// Gini computes the Gini coefficient of a value vector: 0 for a uniform
// (or all-zero) vector, approaching 1 as one holder takes everything.
// Scale-invariant: Gini(w) == Gini(k·w) for k > 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	weighted := 0.0
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	return (2*weighted)/(float64(n)*sum) - float64(n+1)/float64(n)
}

// moranWealth computes Moran's I spatial autocorrelation of agent wealth,
// with weight 1 between agents on adjacent cells. Positive values mean
// wealth clusters spatially; near zero means no spatial structure.
func (s *Simulation) moranWealth() float64 {
	live := s.Registry.Live()
	n := len(live)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, a := range live {
		mean += float64(a.Sugar)
	}
	mean /= float64(n)

	variance := 0.0
	for _, a := range live {
		d := float64(a.Sugar) - mean
		variance += d * d
	}
	if variance == 0 {
		return 0
	}

	cross := 0.0
	links := 0
	for _, a := range live {
		da := float64(a.Sugar) - mean
		for _, q := range a.Position.Adjacent() {
			if !s.Grid.InBounds(q) {
				continue
			}
			if b := s.Registry.At(q); b != nil {
				cross += da * (float64(b.Sugar) - mean)
				links++
			}
		}
	}
	if links == 0 {
		return 0
	}
	return (float64(n) / float64(links)) * (cross / variance)
}

// checkInvariants asserts the tick-boundary invariants; violations indicate
// an engine defect and panic rather than corrupting state silently.
// Enabled by the debug_checks config flag.
func (s *Simulation) checkInvariants(phase string) {
	seen := make(map[grid.Point]bool)
	for _, a := range s.Registry.Live() {
		if seen[a.Position] {
			panicInvariant(phase, "two agents share cell", a.Position)
		}
		seen[a.Position] = true
		if s.Registry.At(a.Position) != a {
			panicInvariant(phase, "occupancy index disagrees with agent position", a.Position)
		}
		if a.Age > a.MaxAge {
			panicInvariant(phase, "agent older than max age", a.ID)
		}
		if s.Cfg.Culture.Enabled && len(a.Culture) != s.Cfg.Culture.TagLength {
			panicInvariant(phase, "culture tag length drift", a.ID)
		}
		if s.Cfg.Disease.Enabled {
			if len(a.Immunity) != s.Cfg.Disease.ImmunityLength {
				panicInvariant(phase, "immunity length drift", a.ID)
			}
			for _, d := range a.Diseases {
				if len(d) >= len(a.Immunity) {
					panicInvariant(phase, "disease as long as immunity", a.ID)
				}
			}
		}
	}
	for _, ln := range s.Ledger.Loans() {
		if s.Registry.Get(ln.Lender) == nil || s.Registry.Get(ln.Borrower) == nil {
			panicInvariant(phase, "loan references dead agent", ln)
		}
	}
	for y := 0; y < s.Grid.H; y++ {
		for x := 0; x < s.Grid.W; x++ {
			c := s.Grid.At(grid.Point{X: x, Y: y})
			if c.Sugar > c.Capacity {
				panicInvariant(phase, "cell sugar above capacity", grid.Point{X: x, Y: y})
			}
		}
	}
}

func panicInvariant(phase, msg string, detail any) {
	panic(fmt.Sprintf("invariant violated after %s: %s: %v", phase, msg, detail))
}
