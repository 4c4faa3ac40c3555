package config

import (
	"os"

	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSize      = 1000
	DefaultSeed      = 42
	DefaultSteps     = 20
	DefaultCeiling   = 100.0
	DefaultScoreMean = 50.0
	DefaultScoreStd  = 15.0
	DefaultRateMean  = 0.05
	DefaultRateStd   = 0.01
	DefaultBoost     = 0.15
	DefaultDecay     = 0.25
	DefaultQuantile  = 0.25
	DefaultRCTSeed   = 123
)

type Config struct {
	Seed       uint64           `yaml:"seed"`
	Population PopulationConfig `yaml:"population"`
	Simulation SimulationConfig `yaml:"simulation"`
	Scenarios  []ScenarioConfig `yaml:"scenarios"`
}

type PopulationConfig struct {
	Size  int                      `yaml:"size"`
	Score growth.ScoreDistribution `yaml:"score"`
	Rate  growth.RateDistribution  `yaml:"rate"`
}

type SimulationConfig struct {
	Steps     int     `yaml:"steps"`
	Ceiling   float64 `yaml:"ceiling"`
	Boost     float64 `yaml:"boost"`
	DecayRate float64 `yaml:"decay_rate"`
	Workers   int     `yaml:"workers"`
}

type ScenarioConfig struct {
	Name     string  `yaml:"name"`
	Quantile float64 `yaml:"quantile"`
	Treated  int     `yaml:"treated,omitempty"`
	Seed     uint64  `yaml:"seed,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed: DefaultSeed,
		Population: PopulationConfig{
			Size: DefaultSize,
			Score: growth.ScoreDistribution{
				Mean:   DefaultScoreMean,
				StdDev: DefaultScoreStd,
				Low:    0,
				High:   DefaultCeiling,
			},
			Rate: growth.RateDistribution{Mean: DefaultRateMean, StdDev: DefaultRateStd},
		},
		Simulation: SimulationConfig{
			Steps:     DefaultSteps,
			Ceiling:   DefaultCeiling,
			Boost:     DefaultBoost,
			DecayRate: DefaultDecay,
		},
		Scenarios: []ScenarioConfig{
			{Name: "targeted", Quantile: DefaultQuantile},
			{Name: "general", Quantile: DefaultQuantile, Seed: DefaultRCTSeed},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Experiment converts the file layout into the form the experiment runner
// takes. The top-level seed drives population generation.
func (c *Config) Experiment() experiment.Config {
	scenarios := make([]experiment.ScenarioSpec, len(c.Scenarios))
	for i, s := range c.Scenarios {
		scenarios[i] = experiment.ScenarioSpec{
			Name:     s.Name,
			Quantile: s.Quantile,
			Treated:  s.Treated,
			Seed:     s.Seed,
		}
	}

	return experiment.Config{
		Population: experiment.PopulationConfig{
			Size:  c.Population.Size,
			Seed:  c.Seed,
			Score: c.Population.Score,
			Rate:  c.Population.Rate,
		},
		Simulation: growth.Config{
			Steps:     c.Simulation.Steps,
			Ceiling:   c.Simulation.Ceiling,
			Boost:     c.Simulation.Boost,
			DecayRate: c.Simulation.DecayRate,
			Workers:   c.Simulation.Workers,
		},
		Scenarios: scenarios,
	}
}

// SetQuantile applies q to every scenario.
func (c *Config) SetQuantile(q float64) {
	for i := range c.Scenarios {
		c.Scenarios[i].Quantile = q
	}
}
