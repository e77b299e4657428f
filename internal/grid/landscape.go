// Landscape generation: the classic two-peak sugar terrain, or an
// opensimplex noise terrain for irregular worlds.
package grid

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Peak is a sugar mound: capacity is highest at the center and falls off
// with distance over Radius.
type Peak struct {
	X      int     `yaml:"x" json:"x"`
	Y      int     `yaml:"y" json:"y"`
	Radius float64 `yaml:"radius" json:"radius"`
}

// DefaultPeaks returns the classic layout: two mounds on the SW–NE diagonal.
func DefaultPeaks(w, h int) []Peak {
	r := float64(w+h) / 4.0
	return []Peak{
		{X: w / 4, Y: (3 * h) / 4, Radius: r},
		{X: (3 * w) / 4, Y: h / 4, Radius: r},
	}
}

// GeneratePeaks fills cell capacities from the given peaks: each cell takes
// the maximum contribution over all peaks, scaled into [0, maxCapacity].
// Cells start at full capacity.
func (g *Grid) GeneratePeaks(peaks []Peak, maxCapacity int) {
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			best := 0.0
			for _, pk := range peaks {
				dx := float64(x - pk.X)
				dy := float64(y - pk.Y)
				d := math.Sqrt(dx*dx + dy*dy)
				// Linear falloff; the mound rim reaches zero at Radius.
				v := 1.0 - d/pk.Radius
				if v > best {
					best = v
				}
			}
			cap := int(math.Ceil(best * float64(maxCapacity)))
			if cap < 0 {
				cap = 0
			}
			if cap > maxCapacity {
				cap = maxCapacity
			}
			c := g.At(Point{x, y})
			c.Capacity = cap
			c.Sugar = cap
		}
	}
}

// GenerateNoise fills cell capacities from layered simplex noise, producing
// an irregular landscape with the same [0, maxCapacity] range. Deterministic
// for a fixed seed.
func (g *Grid) GenerateNoise(seed int64, maxCapacity int) {
	noise := opensimplex.NewNormalized(seed)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := octaveNoise(noise, float64(x), float64(y), 4, 0.08, 0.5)
			cap := int(math.Round(v * float64(maxCapacity)))
			if cap > maxCapacity {
				cap = maxCapacity
			}
			c := g.At(Point{x, y})
			c.Capacity = cap
			c.Sugar = cap
		}
	}
}

// octaveNoise layers multiple noise frequencies for natural-looking terrain.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
