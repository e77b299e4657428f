package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/sugarscape/internal/grid"
)

// Registry owns all live agent records. It enforces single occupancy per
// cell and assigns identifiers, recycling an id only when the caller's
// inUse check confirms nothing still references it (outstanding loans,
// parents' child lists).
type Registry struct {
	byID      map[AgentID]*Agent
	occupancy map[grid.Point]AgentID
	order     []AgentID // insertion order; removed ids are skipped
	nextID    AgentID
	freeIDs   []AgentID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[AgentID]*Agent),
		occupancy: make(map[grid.Point]AgentID),
		nextID:    1,
	}
}

// NextID issues a fresh identifier, preferring recycled ids.
func (r *Registry) NextID() AgentID {
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		return id
	}
	id := r.nextID
	r.nextID++
	return id
}

// Add registers an agent at its position. Fails if the cell is occupied or
// the id is already registered.
func (r *Registry) Add(a *Agent) error {
	if _, ok := r.byID[a.ID]; ok {
		return fmt.Errorf("registry: agent %d already registered", a.ID)
	}
	if occ, ok := r.occupancy[a.Position]; ok {
		return fmt.Errorf("registry: cell %v already occupied by agent %d", a.Position, occ)
	}
	r.byID[a.ID] = a
	r.occupancy[a.Position] = a.ID
	r.order = append(r.order, a.ID)
	return nil
}

// Remove deletes the agent and frees its cell. The id is recycled only when
// inUse(id) is false; a nil inUse always recycles.
func (r *Registry) Remove(id AgentID, inUse func(AgentID) bool) {
	a, ok := r.byID[id]
	if !ok {
		return
	}
	a.Alive = false
	delete(r.byID, id)
	delete(r.occupancy, a.Position)
	if inUse == nil || !inUse(id) {
		r.freeIDs = append(r.freeIDs, id)
	}
}

// Move relocates an agent. Fails if the destination is occupied by another
// agent; moving onto the agent's own cell is a no-op.
func (r *Registry) Move(a *Agent, to grid.Point) error {
	if to == a.Position {
		return nil
	}
	if occ, ok := r.occupancy[to]; ok {
		return fmt.Errorf("registry: cell %v occupied by agent %d", to, occ)
	}
	delete(r.occupancy, a.Position)
	r.occupancy[to] = a.ID
	a.Position = to
	return nil
}

// Get returns the agent with the given id, or nil.
func (r *Registry) Get(id AgentID) *Agent {
	return r.byID[id]
}

// At returns the agent occupying p, or nil.
func (r *Registry) At(p grid.Point) *Agent {
	if id, ok := r.occupancy[p]; ok {
		return r.byID[id]
	}
	return nil
}

// Occupied reports whether p holds an agent.
func (r *Registry) Occupied(p grid.Point) bool {
	_, ok := r.occupancy[p]
	return ok
}

// Count returns the number of live agents.
func (r *Registry) Count() int { return len(r.byID) }

// Live returns all live agents in insertion order. The order slice is
// compacted as a side effect when it has accumulated many dead entries.
func (r *Registry) Live() []*Agent {
	out := make([]*Agent, 0, len(r.byID))
	for _, id := range r.order {
		if a, ok := r.byID[id]; ok {
			out = append(out, a)
		}
	}
	if len(r.order) > 2*len(r.byID)+16 {
		compact := make([]AgentID, 0, len(r.byID))
		for _, id := range r.order {
			if _, ok := r.byID[id]; ok {
				compact = append(compact, id)
			}
		}
		r.order = compact
	}
	return out
}

// Shuffled returns all live agents in a fresh random permutation drawn from
// rng. Each phase visits agents in such an order.
func (r *Registry) Shuffled(rng *rand.Rand) []*Agent {
	out := r.Live()
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// RandomEmptyCell draws an unoccupied cell uniformly, or ok=false when the
// lattice is full.
func (r *Registry) RandomEmptyCell(g *grid.Grid, rng *rand.Rand) (grid.Point, bool) {
	free := g.W*g.H - len(r.occupancy)
	if free <= 0 {
		return grid.Point{}, false
	}
	// Rejection sampling is fine at realistic densities; fall back to a
	// full scan if the lattice is nearly full.
	for try := 0; try < 64; try++ {
		p := grid.Point{X: rng.Intn(g.W), Y: rng.Intn(g.H)}
		if !r.Occupied(p) {
			return p, true
		}
	}
	var empties []grid.Point
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			p := grid.Point{X: x, Y: y}
			if !r.Occupied(p) {
				empties = append(empties, p)
			}
		}
	}
	if len(empties) == 0 {
		return grid.Point{}, false
	}
	return empties[rng.Intn(len(empties))], true
}
