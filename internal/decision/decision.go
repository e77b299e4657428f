// Package decision defines the decision-provider contract: the engine
// computes each agent's eligible choices, a provider picks among them, and
// the engine validates the pick before applying it. The built-in greedy
// provider implements the classic rule; the remote provider delegates the
// pick to an external HTTP service.
package decision

import (
	"github.com/talgya/sugarscape/internal/grid"
)

// Phase names carried in requests so an external provider can tell what it
// is choosing for.
const (
	PhaseMovement     = "movement"
	PhaseCombat       = "combat"
	PhaseReproduction = "reproduction"
	PhaseCredit       = "credit"
)

// Candidate is one eligible relocation target, pre-scored by the engine.
type Candidate struct {
	Target   grid.Point `json:"target"`
	Reward   float64    `json:"reward"`
	Distance int        `json:"distance"`
	Occupied bool       `json:"occupied"` // combat only: a kill target
}

// Request is the agent snapshot plus its locally-visible choices.
// Exactly one of Candidates and Partners is populated, by phase.
type Request struct {
	Phase    string     `json:"phase"`
	Tick     uint64     `json:"tick"`
	AgentID  uint64     `json:"agent_id"`
	Position grid.Point `json:"position"`
	Sugar    int        `json:"sugar"`
	Vision   int        `json:"vision"`

	Candidates []Candidate `json:"candidates,omitempty"`
	Partners   []uint64    `json:"partners,omitempty"`

	// Traits is the agent's opaque payload, forwarded untouched.
	Traits any `json:"traits,omitempty"`
}

// Decision is a provider's structured answer. A nil Move (or empty Partners)
// means idle. Every field is validated by the engine against the request's
// choices; anything invalid downgrades to idle.
type Decision struct {
	Move     *grid.Point `json:"move,omitempty"`
	Partners []uint64    `json:"partners,omitempty"`
}

// Provider produces a decision for one agent in one phase. The call is
// synchronous; the engine blocks on it. Providers must not retain the
// request after returning.
type Provider interface {
	Decide(req Request) (Decision, error)
}

// ValidMove reports whether target is one of the request's candidates.
func ValidMove(req Request, target grid.Point) bool {
	for _, c := range req.Candidates {
		if c.Target == target {
			return true
		}
	}
	return false
}

// FilterPartners returns the decision's partners restricted to the
// request's eligible set, preserving the decision's order and dropping
// duplicates.
func FilterPartners(req Request, picked []uint64) []uint64 {
	eligible := make(map[uint64]bool, len(req.Partners))
	for _, id := range req.Partners {
		eligible[id] = true
	}
	var out []uint64
	for _, id := range picked {
		if eligible[id] {
			out = append(out, id)
			delete(eligible, id)
		}
	}
	return out
}
