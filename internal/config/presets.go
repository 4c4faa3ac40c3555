package config

import "sort"

// Presets are built from DefaultConfig so that unspecified fields keep
// their defaults.
var Presets = map[string]func() *Config{
	"baseline": DefaultConfig,
	"no_boost": func() *Config {
		cfg := DefaultConfig()
		cfg.Simulation.Boost = 0
		return cfg
	},
	"strong_boost": func() *Config {
		cfg := DefaultConfig()
		cfg.Simulation.Boost = 0.4
		return cfg
	},
	"persistent": func() *Config {
		cfg := DefaultConfig()
		cfg.Simulation.DecayRate = 0.05
		return cfg
	},
	"small": func() *Config {
		cfg := DefaultConfig()
		cfg.Population.Size = 100
		cfg.Simulation.Steps = 10
		return cfg
	},
}

func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
