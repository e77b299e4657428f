// Package grid provides the bounded sugar lattice: per-cell capacity and
// level, growback (standard or seasonal), and the optional pollution layer.
package grid

import "fmt"

// Point is a lattice coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Less orders points lexicographically, used as the final movement tie-break.
func (p Point) Less(q Point) bool {
	if p.X != q.X {
		return p.X < q.X
	}
	return p.Y < q.Y
}

// Dist returns the Manhattan distance between two points.
func Dist(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Cell is one lattice site. Sugar never exceeds Capacity.
type Cell struct {
	Capacity  int
	Sugar     int
	Pollution float64
}

// Grid is a bounded W×H lattice. It is not a torus: coordinates outside
// [0,W)×[0,H) are out of bounds.
type Grid struct {
	W, H  int
	cells []Cell

	// Seasonal growback state. When Seasons is false the whole grid grows
	// at GrowbackRate every tick.
	GrowbackRate  int
	Seasons       bool
	SeasonLength  int
	WinterDivisor int

	// Pollution parameters. Production applies per unit of sugar gathered,
	// consumption per unit metabolized, both at the cell an agent occupies.
	PollutionOn     bool
	ProductionRate  float64
	ConsumptionRate float64

	diffuseScratch []float64
}

// New returns a grid of the given size with zero capacity everywhere.
// Landscape generation fills capacities afterwards.
func New(w, h int) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("grid: invalid dimensions %dx%d", w, h)
	}
	return &Grid{
		W:             w,
		H:             h,
		cells:         make([]Cell, w*h),
		GrowbackRate:  1,
		WinterDivisor: 8,
	}, nil
}

// InBounds reports whether p lies on the lattice.
func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.X < g.W && p.Y >= 0 && p.Y < g.H
}

// At returns the cell at p. The caller must ensure p is in bounds.
func (g *Grid) At(p Point) *Cell {
	return &g.cells[p.Y*g.W+p.X]
}

// Welfare is the movement objective at p: cell sugar, divided by the
// pollution load when the pollution layer is active.
func (g *Grid) Welfare(p Point) float64 {
	c := g.At(p)
	if !g.PollutionOn {
		return float64(c.Sugar)
	}
	return float64(c.Sugar) / (1.0 + c.Pollution)
}

// Harvest removes and returns all sugar at p, charging production pollution
// when the pollution layer is active.
func (g *Grid) Harvest(p Point, metabolism int) int {
	c := g.At(p)
	taken := c.Sugar
	c.Sugar = 0
	if g.PollutionOn {
		c.Pollution += g.ProductionRate*float64(taken) + g.ConsumptionRate*float64(metabolism)
	}
	return taken
}

// Growback regrows every cell toward capacity. Under seasonal growback the
// northern and southern halves alternate summer and winter every
// SeasonLength ticks; winter regrows at rate/WinterDivisor.
func (g *Grid) Growback(tick uint64) {
	if !g.Seasons {
		g.grow(0, g.H, g.GrowbackRate)
		return
	}
	northSummer := (tick/uint64(g.SeasonLength))%2 == 0
	winterRate := g.GrowbackRate / g.WinterDivisor
	if winterRate < 1 {
		winterRate = 0
	}
	half := g.H / 2
	if northSummer {
		g.grow(0, half, g.GrowbackRate)
		g.grow(half, g.H, winterRate)
	} else {
		g.grow(0, half, winterRate)
		g.grow(half, g.H, g.GrowbackRate)
	}
}

func (g *Grid) grow(yFrom, yTo, rate int) {
	for y := yFrom; y < yTo; y++ {
		for x := 0; x < g.W; x++ {
			c := &g.cells[y*g.W+x]
			c.Sugar += rate
			if c.Sugar > c.Capacity {
				c.Sugar = c.Capacity
			}
		}
	}
}

// DiffusePollution replaces each cell's pollution with the mean over its von
// Neumann neighborhood, computed from a snapshot of the pre-diffusion state.
func (g *Grid) DiffusePollution() {
	if g.diffuseScratch == nil {
		g.diffuseScratch = make([]float64, len(g.cells))
	}
	for i := range g.cells {
		g.diffuseScratch[i] = g.cells[i].Pollution
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			sum := 0.0
			n := 0
			for _, q := range (Point{x, y}).Adjacent() {
				if g.InBounds(q) {
					sum += g.diffuseScratch[q.Y*g.W+q.X]
					n++
				}
			}
			if n > 0 {
				g.cells[y*g.W+x].Pollution = sum / float64(n)
			}
		}
	}
}

// TotalSugar returns the sugar currently on the lattice.
func (g *Grid) TotalSugar() int {
	total := 0
	for i := range g.cells {
		total += g.cells[i].Sugar
	}
	return total
}

// Adjacent returns the four von Neumann neighbors of p, including points that
// may be out of bounds — callers filter with InBounds.
func (p Point) Adjacent() [4]Point {
	return [4]Point{
		{p.X + 1, p.Y},
		{p.X - 1, p.Y},
		{p.X, p.Y + 1},
		{p.X, p.Y - 1},
	}
}

// VisionShape selects which cells an agent with vision v can see from p.
type VisionShape uint8

const (
	// ShapeCardinal is the formal rule's vision: straight rays of length v
	// along the four cardinal directions.
	ShapeCardinal VisionShape = iota
	// ShapeDiamond is the full neighborhood within Manhattan distance v.
	ShapeDiamond
)

// Visible appends to dst every in-bounds cell visible from p with vision v
// under the given shape, excluding p itself, and returns the slice. Cells are
// produced in a fixed deterministic order.
func (g *Grid) Visible(dst []Point, p Point, vision int, shape VisionShape) []Point {
	switch shape {
	case ShapeCardinal:
		for d := 1; d <= vision; d++ {
			for _, q := range [4]Point{
				{p.X + d, p.Y}, {p.X - d, p.Y}, {p.X, p.Y + d}, {p.X, p.Y - d},
			} {
				if g.InBounds(q) {
					dst = append(dst, q)
				}
			}
		}
	case ShapeDiamond:
		for dy := -vision; dy <= vision; dy++ {
			rem := vision - abs(dy)
			for dx := -rem; dx <= rem; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				q := Point{p.X + dx, p.Y + dy}
				if g.InBounds(q) {
					dst = append(dst, q)
				}
			}
		}
	}
	return dst
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
