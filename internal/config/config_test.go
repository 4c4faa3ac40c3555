package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Population.Size != 1000 {
		t.Errorf("expected size 1000, got %d", cfg.Population.Size)
	}
	if cfg.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Seed)
	}
	if cfg.Simulation.Steps != 20 || cfg.Simulation.Ceiling != 100 {
		t.Errorf("unexpected simulation defaults: %+v", cfg.Simulation)
	}
	if len(cfg.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(cfg.Scenarios))
	}
	if cfg.Scenarios[1].Seed != 123 {
		t.Errorf("expected rct seed 123, got %d", cfg.Scenarios[1].Seed)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.yaml")

	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Simulation.Boost = 0.3
	cfg.Population.Score.High = 90

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Seed != 7 || loaded.Simulation.Boost != 0.3 || loaded.Population.Score.High != 90 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Population.Rate.StdDev != DefaultRateStd {
		t.Errorf("expected rate std %f, got %f", DefaultRateStd, loaded.Population.Rate.StdDev)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("small")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Population.Size != 100 || cfg.Simulation.Steps != 10 {
		t.Errorf("unexpected small preset: %+v", cfg)
	}

	cfg = GetPreset("no_boost")
	if cfg.Simulation.Boost != 0 {
		t.Errorf("expected zero boost, got %f", cfg.Simulation.Boost)
	}

	// presets must not share state
	cfg.Simulation.Steps = 99
	if GetPreset("no_boost").Simulation.Steps != DefaultSteps {
		t.Error("preset mutated by caller")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	want := []string{"baseline", "no_boost", "persistent", "small", "strong_boost"}
	got := ListPresets()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestExperimentConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetQuantile(0.1)

	ec := cfg.Experiment()

	if ec.Population.Seed != 42 || ec.Population.Size != 1000 {
		t.Errorf("population not carried over: %+v", ec.Population)
	}
	if ec.Simulation.Boost != DefaultBoost || ec.Simulation.DecayRate != DefaultDecay {
		t.Errorf("simulation not carried over: %+v", ec.Simulation)
	}
	for _, s := range ec.Scenarios {
		if s.Quantile != 0.1 {
			t.Errorf("scenario %s: expected quantile 0.1, got %f", s.Name, s.Quantile)
		}
	}
	if ec.Scenarios[1].Seed != DefaultRCTSeed {
		t.Errorf("expected rct seed carried over, got %d", ec.Scenarios[1].Seed)
	}
}
