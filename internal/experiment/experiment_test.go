package experiment

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/san-kum/growthsim/internal/growth"
	"github.com/san-kum/growthsim/internal/logging"
	"github.com/san-kum/growthsim/internal/scenario"
)

func testConfig() Config {
	sim := growth.DefaultConfig()
	sim.Steps = 5
	return Config{
		Population: PopulationConfig{
			Size:  200,
			Seed:  42,
			Score: growth.ScoreDistribution{Mean: 50, StdDev: 15, Low: 0, High: 100},
			Rate:  growth.RateDistribution{Mean: 0.05, StdDev: 0.01},
		},
		Simulation: sim,
		Scenarios: []ScenarioSpec{
			{Name: "targeted", Quantile: 0.25},
			{Name: "general", Quantile: 0.25, Seed: 123},
		},
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig()
	result, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Population) != 200 {
		t.Errorf("expected 200 individuals, got %d", len(result.Population))
	}
	if len(result.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(result.Scenarios))
	}

	want, err := scenario.TargetedCount(result.Population, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	for _, sr := range result.Scenarios {
		if sr.Treated != want {
			t.Errorf("%s: expected %d treated, got %d", sr.Name, want, sr.Treated)
		}
		if len(sr.Result.Rows) != 6*200 {
			t.Errorf("%s: expected %d rows, got %d", sr.Name, 6*200, len(sr.Result.Rows))
		}
		if len(sr.Effects) != 6 {
			t.Errorf("%s: expected 6 effect sizes, got %d", sr.Name, len(sr.Effects))
		}
		if len(sr.Means) != 12 {
			t.Errorf("%s: expected 12 group means, got %d", sr.Name, len(sr.Means))
		}
		if _, ok := sr.Result.Metrics["final_gap"]; !ok {
			t.Errorf("%s: default metrics not attached", sr.Name)
		}
	}
}

func TestRun_SharedPopulation(t *testing.T) {
	result, err := New(testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	a := result.Scenarios[0].Result.At(0)
	b := result.Scenarios[1].Result.At(0)
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Score != b[i].Score {
			t.Fatalf("scenarios saw different populations at row %d", i)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	r1, err := New(testConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := New(testConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for s := range r1.Scenarios {
		rows1, rows2 := r1.Scenarios[s].Result.Rows, r2.Scenarios[s].Result.Rows
		for i := range rows1 {
			if rows1[i] != rows2[i] {
				t.Fatalf("scenario %d row %d differs: %+v vs %+v", s, i, rows1[i], rows2[i])
			}
		}
	}
}

func TestRun_UsePopulation(t *testing.T) {
	pop := growth.Population{
		{ID: 0, InitialScore: 40, BaselineRate: 0.05},
		{ID: 1, InitialScore: 60, BaselineRate: 0.05},
		{ID: 2, InitialScore: 50, BaselineRate: 0.05},
		{ID: 3, InitialScore: 70, BaselineRate: 0.05},
	}

	cfg := testConfig()
	cfg.Scenarios = []ScenarioSpec{{Name: "targeted", Quantile: 0.25}}

	exp := New(cfg)
	exp.UsePopulation(pop)
	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	sr, ok := result.Scenario("targeted")
	if !ok {
		t.Fatal("targeted scenario missing")
	}
	if sr.Treated != 1 {
		t.Errorf("expected 1 treated, got %d", sr.Treated)
	}
	if got := sr.Result.At(1)[0].Group; got != growth.Treatment {
		t.Errorf("expected lowest scorer treated, got %s", got)
	}
	if _, ok := result.Scenario("general"); ok {
		t.Error("unexpected general scenario")
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no scenarios", func(c *Config) { c.Scenarios = nil }, "no scenarios"},
		{"unknown scenario", func(c *Config) { c.Scenarios = []ScenarioSpec{{Name: "universal", Quantile: 0.5}} }, "unknown scenario"},
		{"duplicate", func(c *Config) { c.Scenarios = append(c.Scenarios, c.Scenarios[0]) }, "duplicate scenario"},
		{"bad size", func(c *Config) { c.Population.Size = 0 }, "generate population"},
		{"bad quantile", func(c *Config) { c.Scenarios[0].Quantile = 0 }, "quantile"},
		{"bad steps", func(c *Config) { c.Simulation.Steps = -1 }, "steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg).Run(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_Logs(t *testing.T) {
	var buf bytes.Buffer
	exp := New(testConfig())
	exp.SetLogger(logging.NewLogger("debug", &buf))

	if _, err := exp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "population generated") {
		t.Errorf("missing generation log: %q", out)
	}
	if strings.Count(out, "scenario complete") != 2 {
		t.Errorf("expected one completion line per scenario: %q", out)
	}
}

type stepCounter struct{ steps int }

func (s *stepCounter) OnStep(int, []growth.Row) { s.steps++ }

func TestAddObserver(t *testing.T) {
	obs := &stepCounter{}
	exp := New(testConfig())
	exp.AddObserver(obs)

	if _, err := exp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// 2 scenarios, t = 0..5
	if obs.steps != 12 {
		t.Errorf("expected 12 observed steps, got %d", obs.steps)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := r.ListScenarios()
	if len(names) != 2 || names[0] != "general" || names[1] != "targeted" {
		t.Errorf("unexpected scenarios: %v", names)
	}

	a, err := r.GetScenario(ScenarioSpec{Name: "targeted", Quantile: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "targeted" {
		t.Errorf("expected targeted, got %s", a.Name())
	}

	r.Register("everyone", func(ScenarioSpec) scenario.Assigner {
		return scenario.Targeted{Quantile: 1}
	})
	if _, err := r.GetScenario(ScenarioSpec{Name: "everyone"}); err != nil {
		t.Errorf("registered scenario not found: %v", err)
	}
}
