package decision

// Greedy is the built-in welfare-maximizing provider: highest reward first,
// then nearest, then lexicographic target order. It is deterministic and is
// also the fallback when a remote provider fails.
type Greedy struct{}

// NewGreedy returns the built-in provider.
func NewGreedy() *Greedy { return &Greedy{} }

// Decide picks the best candidate, or returns the partners in the order the
// engine offered them (the engine randomizes that order per tick).
func (g *Greedy) Decide(req Request) (Decision, error) {
	switch req.Phase {
	case PhaseMovement, PhaseCombat:
		best := -1
		for i, c := range req.Candidates {
			if best < 0 || better(c, req.Candidates[best]) {
				best = i
			}
		}
		if best < 0 {
			return Decision{}, nil
		}
		target := req.Candidates[best].Target
		return Decision{Move: &target}, nil
	case PhaseReproduction, PhaseCredit:
		return Decision{Partners: req.Partners}, nil
	}
	return Decision{}, nil
}

// better reports whether a beats b: max reward, then min distance, then
// lexicographic position order for reproducibility.
func better(a, b Candidate) bool {
	if a.Reward != b.Reward {
		return a.Reward > b.Reward
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Target.Less(b.Target)
}
