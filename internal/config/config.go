// Package config provides YAML configuration loading and validation for the
// simulation. A Config is built once at startup and never mutated afterwards;
// all mutable state lives in the engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/sugarscape/internal/grid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Range is an inclusive integer sampling range.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Window is an inclusive age interval.
type Window struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether age falls inside the window.
func (w Window) Contains(age int) bool {
	return age >= w.Start && age <= w.End
}

// GridConfig controls the lattice and landscape.
type GridConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	MaxCapacity int    `yaml:"max_capacity"`
	Landscape   string `yaml:"landscape"` // "peaks" or "noise"
	Peaks       []Peak `yaml:"peaks"`     // empty = classic two-peak layout

	GrowbackRate  int  `yaml:"growback_rate"`
	Seasons       bool `yaml:"seasons"`
	SeasonLength  int  `yaml:"season_length"`
	WinterDivisor int  `yaml:"winter_divisor"`

	Pollution         bool    `yaml:"pollution"`
	ProductionRate    float64 `yaml:"production_rate"`
	ConsumptionRate   float64 `yaml:"consumption_rate"`
	DiffusionInterval int     `yaml:"diffusion_interval"`
}

// Peak mirrors grid.Peak for YAML loading.
type Peak struct {
	X      int     `yaml:"x"`
	Y      int     `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// PopulationConfig controls initial population sampling.
type PopulationConfig struct {
	Size         int    `yaml:"size"`
	Vision       Range  `yaml:"vision"`
	Metabolism   Range  `yaml:"metabolism"`
	InitialSugar Range  `yaml:"initial_sugar"`
	MaxAge       Range  `yaml:"max_age"`
	VisionShape  string `yaml:"vision_shape"` // "cardinal" or "diamond"
}

// ReproductionConfig controls pairing, endowment, and the replacement rule.
type ReproductionConfig struct {
	Enabled         bool   `yaml:"enabled"`
	FertilityMale   Window `yaml:"fertility_male"`
	FertilityFemale Window `yaml:"fertility_female"`
	MaxPartners     int    `yaml:"max_partners"`

	// Replacement keeps the population constant: each death spawns a fresh
	// random agent with max-age drawn from ReplacementMaxAge.
	Replacement       bool  `yaml:"replacement"`
	ReplacementMaxAge Range `yaml:"replacement_max_age"`
}

// CultureConfig controls tag diffusion.
type CultureConfig struct {
	Enabled   bool `yaml:"enabled"`
	TagLength int  `yaml:"tag_length"` // must be odd
}

// CombatConfig controls the combat extension of movement.
type CombatConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit"` // reward cap on the victim's wealth
}

// CreditConfig controls lending.
type CreditConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"`     // simple interest per tick of duration
	Duration int     `yaml:"duration"` // ticks until due
}

// DiseaseConfig controls transmission and immune response.
type DiseaseConfig struct {
	Enabled         bool  `yaml:"enabled"`
	ImmunityLength  int   `yaml:"immunity_length"`
	InitialDiseases int   `yaml:"initial_diseases"` // diseases seeded per agent
	DiseaseLength   Range `yaml:"disease_length"`   // strictly below immunity_length
	Penalty         int   `yaml:"penalty"`          // sugar per uncured disease per tick
}

// DecisionConfig selects the decision provider.
type DecisionConfig struct {
	Provider  string `yaml:"provider"` // "greedy" or "remote"
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// MetricsConfig controls the SQLite sink and export.
type MetricsConfig struct {
	Database     string `yaml:"database"` // empty = sink disabled
	RecordAgents bool   `yaml:"record_agents"`
	LogInterval  int    `yaml:"log_interval"` // ticks between Info summaries
}

// APIConfig controls the read-only HTTP observation endpoints.
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config holds every simulation parameter. Immutable after Load.
type Config struct {
	Seed   int64    `yaml:"seed"`
	Phases []string `yaml:"phases"`

	Grid         GridConfig         `yaml:"grid"`
	Population   PopulationConfig   `yaml:"population"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Culture      CultureConfig      `yaml:"culture"`
	Combat       CombatConfig       `yaml:"combat"`
	Credit       CreditConfig       `yaml:"credit"`
	Disease      DiseaseConfig      `yaml:"disease"`
	Decision     DecisionConfig     `yaml:"decision"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	API          APIConfig          `yaml:"api"`

	// DebugChecks enables invariant assertions at phase boundaries.
	DebugChecks bool `yaml:"debug_checks"`
}

// KnownPhases lists every phase name the scheduler understands, in the
// default activation order.
var KnownPhases = []string{"growback", "movement", "combat", "reproduction", "culture", "credit", "disease"}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load reads the embedded defaults, overlays the YAML file at path when path
// is non-empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field consistency. Any error here is
// fatal and must be reported before the first tick.
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("config: grid dimensions %dx%d must be positive", c.Grid.Width, c.Grid.Height)
	}
	if c.Grid.MaxCapacity < 0 {
		return fmt.Errorf("config: max_capacity %d must be non-negative", c.Grid.MaxCapacity)
	}
	switch c.Grid.Landscape {
	case "peaks", "noise":
	default:
		return fmt.Errorf("config: unknown landscape %q", c.Grid.Landscape)
	}
	if c.Grid.Seasons && c.Grid.SeasonLength <= 0 {
		return fmt.Errorf("config: season_length %d must be positive when seasons are enabled", c.Grid.SeasonLength)
	}
	if c.Grid.Pollution && c.Grid.DiffusionInterval <= 0 {
		return fmt.Errorf("config: diffusion_interval %d must be positive when pollution is enabled", c.Grid.DiffusionInterval)
	}
	if c.Population.Size <= 0 {
		return fmt.Errorf("config: population size %d must be positive", c.Population.Size)
	}
	if c.Population.Size > c.Grid.Width*c.Grid.Height {
		return fmt.Errorf("config: population %d exceeds %d cells", c.Population.Size, c.Grid.Width*c.Grid.Height)
	}
	for _, r := range []struct {
		name string
		r    Range
	}{
		{"vision", c.Population.Vision},
		{"metabolism", c.Population.Metabolism},
		{"initial_sugar", c.Population.InitialSugar},
		{"max_age", c.Population.MaxAge},
	} {
		if r.r.Min <= 0 || r.r.Max < r.r.Min {
			return fmt.Errorf("config: %s range [%d,%d] invalid", r.name, r.r.Min, r.r.Max)
		}
	}
	switch c.Population.VisionShape {
	case "cardinal", "diamond":
	default:
		return fmt.Errorf("config: unknown vision_shape %q", c.Population.VisionShape)
	}
	if c.Reproduction.Enabled {
		for _, w := range []struct {
			name string
			w    Window
		}{
			{"fertility_male", c.Reproduction.FertilityMale},
			{"fertility_female", c.Reproduction.FertilityFemale},
		} {
			if w.w.Start < 0 || w.w.End < w.w.Start {
				return fmt.Errorf("config: %s window [%d,%d] invalid", w.name, w.w.Start, w.w.End)
			}
		}
		if c.Reproduction.MaxPartners <= 0 {
			return fmt.Errorf("config: max_partners %d must be positive", c.Reproduction.MaxPartners)
		}
	}
	if c.Culture.Enabled || c.Combat.Enabled {
		if c.Culture.TagLength <= 0 || c.Culture.TagLength%2 == 0 {
			return fmt.Errorf("config: tag_length %d must be positive and odd", c.Culture.TagLength)
		}
	}
	if c.Credit.Enabled {
		if c.Credit.Rate < 0 {
			return fmt.Errorf("config: credit rate %f must be non-negative", c.Credit.Rate)
		}
		if c.Credit.Duration <= 0 {
			return fmt.Errorf("config: credit duration %d must be positive", c.Credit.Duration)
		}
	}
	if c.Disease.Enabled {
		if c.Disease.ImmunityLength <= 0 {
			return fmt.Errorf("config: immunity_length %d must be positive", c.Disease.ImmunityLength)
		}
		dl := c.Disease.DiseaseLength
		if dl.Min <= 0 || dl.Max < dl.Min || dl.Max >= c.Disease.ImmunityLength {
			return fmt.Errorf("config: disease_length [%d,%d] must be positive and strictly below immunity_length %d",
				dl.Min, dl.Max, c.Disease.ImmunityLength)
		}
		if c.Disease.Penalty < 0 {
			return fmt.Errorf("config: disease penalty %d must be non-negative", c.Disease.Penalty)
		}
	}
	switch c.Decision.Provider {
	case "greedy":
	case "remote":
		if c.Decision.Endpoint == "" {
			return fmt.Errorf("config: remote decision provider requires an endpoint")
		}
	default:
		return fmt.Errorf("config: unknown decision provider %q", c.Decision.Provider)
	}
	known := make(map[string]bool, len(KnownPhases))
	for _, p := range KnownPhases {
		known[p] = true
	}
	scheduled := make(map[string]bool, len(c.Phases))
	for _, p := range c.Phases {
		if !known[p] {
			return fmt.Errorf("config: unknown phase %q", p)
		}
		scheduled[p] = true
	}
	// An enabled rule whose phase is not scheduled would silently never run.
	for _, rule := range []struct {
		name    string
		enabled bool
	}{
		{"combat", c.Combat.Enabled},
		{"reproduction", c.Reproduction.Enabled},
		{"culture", c.Culture.Enabled},
		{"credit", c.Credit.Enabled},
		{"disease", c.Disease.Enabled},
	} {
		if rule.enabled && !scheduled[rule.name] {
			return fmt.Errorf("config: %s is enabled but %q is missing from phases", rule.name, rule.name)
		}
	}
	return nil
}

// Shape maps the configured vision shape name to its grid constant.
// Valid after Validate.
func (c *Config) Shape() grid.VisionShape {
	if c.Population.VisionShape == "cardinal" {
		return grid.ShapeCardinal
	}
	return grid.ShapeDiamond
}
