package config

import (
	"strings"
	"testing"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := defaults(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded defaults must validate: %v", err)
	}
}

func TestValidateRejectsEvenTagLength(t *testing.T) {
	cfg := defaults(t)
	cfg.Culture.TagLength = 10
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "tag_length") {
		t.Fatalf("even tag length must be rejected, got %v", err)
	}
}

func TestValidateRejectsDiseaseAsLongAsImmunity(t *testing.T) {
	cfg := defaults(t)
	cfg.Disease.DiseaseLength.Max = cfg.Disease.ImmunityLength
	if cfg.Validate() == nil {
		t.Fatal("disease length reaching immunity length must be rejected")
	}
}

func TestValidateRejectsInvertedRange(t *testing.T) {
	cfg := defaults(t)
	cfg.Population.MaxAge = Range{Min: 100, Max: 60}
	if cfg.Validate() == nil {
		t.Fatal("inverted max_age range must be rejected")
	}
}

func TestValidateRejectsOverfullPopulation(t *testing.T) {
	cfg := defaults(t)
	cfg.Grid.Width, cfg.Grid.Height = 5, 5
	cfg.Population.Size = 26
	if cfg.Validate() == nil {
		t.Fatal("population larger than the lattice must be rejected")
	}
}

func TestValidateRejectsUnknownPhase(t *testing.T) {
	cfg := defaults(t)
	cfg.Phases = append(cfg.Phases, "weather")
	if cfg.Validate() == nil {
		t.Fatal("unknown phase name must be rejected")
	}
}

func TestValidateRequiresPhaseForEnabledRule(t *testing.T) {
	cfg := defaults(t)
	cfg.Combat.Enabled = true // default phase list omits combat
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "combat") {
		t.Fatalf("enabled rule missing from phases must be rejected, got %v", err)
	}
	cfg.Phases = append(cfg.Phases, "combat")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("combat enabled and scheduled should validate: %v", err)
	}
}

func TestValidateRemoteProviderNeedsEndpoint(t *testing.T) {
	cfg := defaults(t)
	cfg.Decision.Provider = "remote"
	cfg.Decision.Endpoint = ""
	if cfg.Validate() == nil {
		t.Fatal("remote provider without endpoint must be rejected")
	}
	cfg.Decision.Endpoint = "http://localhost:9000/decide"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("remote provider with endpoint should validate: %v", err)
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: 15, End: 40}
	for _, tc := range []struct {
		age  int
		want bool
	}{{14, false}, {15, true}, {40, true}, {41, false}} {
		if got := w.Contains(tc.age); got != tc.want {
			t.Errorf("Contains(%d) = %v, want %v", tc.age, got, tc.want)
		}
	}
}
