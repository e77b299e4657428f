// Package agents provides the agent data model, the population registry, and
// initial-population spawning.
package agents

import (
	"github.com/talgya/sugarscape/internal/bitset"
	"github.com/talgya/sugarscape/internal/grid"
)

// AgentID is a unique identifier for an agent. Identifiers are recycled only
// once no live loan references them.
type AgentID uint64

// Sex represents biological sex; fertility windows are sex-specific.
type Sex uint8

const (
	SexMale   Sex = 0
	SexFemale Sex = 1
)

// Agent is the core entity of the simulation.
type Agent struct {
	ID       AgentID    `json:"id"`
	Position grid.Point `json:"position"`
	Sex      Sex        `json:"sex"`

	Vision     int `json:"vision"`
	Metabolism int `json:"metabolism"`
	Age        int `json:"age"`
	MaxAge     int `json:"max_age"`

	// Sugar may transiently drop to zero or below within a tick; the agent
	// is then removed at the tick's death pass. InitialSugar is the birth
	// endowment and doubles as the reproduction/credit threshold.
	Sugar        int `json:"sugar"`
	InitialSugar int `json:"initial_sugar"`

	// LastHarvest is the sugar gathered in the agent's most recent move,
	// used by the credit rule to judge credit-worthiness.
	LastHarvest int `json:"last_harvest"`

	Culture  bitset.Bits   `json:"-"`
	Children []AgentID     `json:"children,omitempty"`
	Immunity bitset.Bits   `json:"-"`
	Diseases []bitset.Bits `json:"-"`

	// Traits is an opaque payload for external decision providers; the
	// engine never inspects it.
	Traits any `json:"-"`

	Alive bool `json:"alive"`

	// MovedTick marks the last tick this agent relocated. An agent that
	// moved (or killed) during the combat phase is skipped by plain
	// movement in the same tick.
	MovedTick uint64 `json:"-"`
}

// Wealth is the agent's current sugar holding.
func (a *Agent) Wealth() int { return a.Sugar }

// Tribe is the majority bit of the culture tag. Tag length is odd, so a
// majority always exists.
func (a *Agent) Tribe() int { return bitset.Majority(a.Culture) }

// HasDisease reports whether the agent already carries the given disease.
func (a *Agent) HasDisease(d bitset.Bits) bool {
	for _, have := range a.Diseases {
		if bitset.Equal(have, d) {
			return true
		}
	}
	return false
}

// AddDisease unions d into the disease set.
func (a *Agent) AddDisease(d bitset.Bits) {
	if !a.HasDisease(d) {
		a.Diseases = append(a.Diseases, d.Clone())
	}
}
