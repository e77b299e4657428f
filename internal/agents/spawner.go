// Agent spawning — samples attributes within the configured ranges for the
// initial population, replacements, and newborns.
package agents

import (
	"math/rand"

	"github.com/talgya/sugarscape/internal/bitset"
	"github.com/talgya/sugarscape/internal/config"
	"github.com/talgya/sugarscape/internal/grid"
)

// Spawner creates agents. It draws from the simulation's shared RNG so runs
// stay reproducible under a fixed seed.
type Spawner struct {
	cfg *config.Config
	rng *rand.Rand
}

// NewSpawner creates a spawner over the shared random source.
func NewSpawner(cfg *config.Config, rng *rand.Rand) *Spawner {
	return &Spawner{cfg: cfg, rng: rng}
}

func (s *Spawner) sample(r config.Range) int {
	return r.Min + s.rng.Intn(r.Max-r.Min+1)
}

// SpawnRandom creates an agent with random attributes at the given position.
// Used for the initial population and the replacement rule.
func (s *Spawner) SpawnRandom(id AgentID, pos grid.Point) *Agent {
	p := s.cfg.Population
	sex := SexMale
	if s.rng.Intn(2) == 1 {
		sex = SexFemale
	}
	sugar := s.sample(p.InitialSugar)
	a := &Agent{
		ID:           id,
		Position:     pos,
		Sex:          sex,
		Vision:       s.sample(p.Vision),
		Metabolism:   s.sample(p.Metabolism),
		MaxAge:       s.sample(p.MaxAge),
		Sugar:        sugar,
		InitialSugar: sugar,
		Alive:        true,
	}
	if s.cfg.Culture.Enabled || s.cfg.Combat.Enabled {
		a.Culture = bitset.Random(s.rng, s.cfg.Culture.TagLength)
	}
	if s.cfg.Disease.Enabled {
		a.Immunity = bitset.Random(s.rng, s.cfg.Disease.ImmunityLength)
		for i := 0; i < s.cfg.Disease.InitialDiseases; i++ {
			a.AddDisease(bitset.Random(s.rng, s.sample(s.cfg.Disease.DiseaseLength)))
		}
	}
	return a
}

// SpawnReplacement creates a replacement agent with max-age drawn from the
// replacement range, age zero, at the given position.
func (s *Spawner) SpawnReplacement(id AgentID, pos grid.Point) *Agent {
	a := s.SpawnRandom(id, pos)
	a.MaxAge = s.sample(s.cfg.Reproduction.ReplacementMaxAge)
	return a
}

// SpawnChild creates a newborn from two parents: vision, metabolism and
// max-age are each taken from one parent uniformly at random; the culture
// tag is a position-wise crossover of the parents' tags, and likewise for
// immunity. The child starts with no sugar — the parents endow it.
func (s *Spawner) SpawnChild(id AgentID, pos grid.Point, mother, father *Agent) *Agent {
	sex := SexMale
	if s.rng.Intn(2) == 1 {
		sex = SexFemale
	}
	pick := func(a, b int) int {
		if s.rng.Intn(2) == 0 {
			return a
		}
		return b
	}
	child := &Agent{
		ID:         id,
		Position:   pos,
		Sex:        sex,
		Vision:     pick(mother.Vision, father.Vision),
		Metabolism: pick(mother.Metabolism, father.Metabolism),
		MaxAge:     pick(mother.MaxAge, father.MaxAge),
		Alive:      true,
	}
	if len(mother.Culture) > 0 {
		child.Culture = bitset.Crossover(s.rng, mother.Culture, father.Culture)
	}
	if len(mother.Immunity) > 0 {
		child.Immunity = bitset.Crossover(s.rng, mother.Immunity, father.Immunity)
	}
	return child
}
