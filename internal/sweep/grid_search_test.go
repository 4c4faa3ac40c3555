package sweep

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

func baseConfig() experiment.Config {
	sim := growth.DefaultConfig()
	sim.Steps = 5
	return experiment.Config{
		Population: experiment.PopulationConfig{
			Size:  100,
			Seed:  42,
			Score: growth.ScoreDistribution{Mean: 50, StdDev: 15, Low: 0, High: 100},
			Rate:  growth.RateDistribution{Mean: 0.05, StdDev: 0.01},
		},
		Simulation: sim,
		Scenarios:  []experiment.ScenarioSpec{{Name: "targeted", Quantile: 0.25}},
	}
}

func TestSearch_Maximize(t *testing.T) {
	g, err := NewGridSearch([]string{"boost"}, [][]float64{{0, 0.1, 0.3}})
	if err != nil {
		t.Fatal(err)
	}
	g.Maximize = true

	report, err := g.Search(context.Background(), baseConfig(), "targeted", "final_gap")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(report.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(report.Points))
	}
	if report.Best == nil || report.Best.Params["boost"] != 0.3 {
		t.Errorf("expected best boost 0.3, got %+v", report.Best)
	}
}

func TestSearch_Minimize(t *testing.T) {
	g, err := NewGridSearch([]string{"boost"}, [][]float64{{0, 0.1, 0.3}})
	if err != nil {
		t.Fatal(err)
	}

	report, err := g.Search(context.Background(), baseConfig(), "targeted", "final_gap")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if report.Best == nil || report.Best.Params["boost"] != 0 {
		t.Errorf("expected best boost 0, got %+v", report.Best)
	}
}

func TestSearch_Cartesian(t *testing.T) {
	g, err := NewGridSearch(
		[]string{"boost", "decay_rate"},
		[][]float64{{0.1, 0.2}, {0.05, 0.25, 0.5}},
	)
	if err != nil {
		t.Fatal(err)
	}

	report, err := g.Search(context.Background(), baseConfig(), "targeted", "mean_gain")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(report.Points))
	}
	seen := make(map[[2]float64]bool)
	for _, p := range report.Points {
		seen[[2]float64{p.Params["boost"], p.Params["decay_rate"]}] = true
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct points, got %d", len(seen))
	}
}

func TestSearch_FailingPointsRecorded(t *testing.T) {
	g, err := NewGridSearch([]string{"steps"}, [][]float64{{-1, 3}})
	if err != nil {
		t.Fatal(err)
	}

	report, err := g.Search(context.Background(), baseConfig(), "targeted", "final_gap")
	if err != nil {
		t.Fatalf("failing point aborted search: %v", err)
	}
	if report.Points[0].Err == "" {
		t.Error("expected first point to record an error")
	}
	if !math.IsNaN(report.Points[0].Value) {
		t.Error("failed point should carry NaN")
	}
	if report.Best == nil || report.Best.Params["steps"] != 3 {
		t.Errorf("expected best steps 3, got %+v", report.Best)
	}
}

func TestSearch_UnknownMetric(t *testing.T) {
	g, _ := NewGridSearch([]string{"boost"}, [][]float64{{0.1}})
	report, err := g.Search(context.Background(), baseConfig(), "targeted", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if report.Points[0].Err == "" || report.Best != nil {
		t.Errorf("expected recorded error and no best: %+v", report)
	}
}

func TestSearch_Canceled(t *testing.T) {
	g, _ := NewGridSearch([]string{"boost"}, [][]float64{{0.1, 0.2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Search(ctx, baseConfig(), "targeted", "final_gap"); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestNewGridSearch_Invalid(t *testing.T) {
	if _, err := NewGridSearch([]string{"boost"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := NewGridSearch([]string{"gravity"}, [][]float64{{1}}); err == nil {
		t.Error("expected unknown param error")
	}
	if _, err := NewGridSearch([]string{"boost"}, [][]float64{{}}); err == nil {
		t.Error("expected empty range error")
	}
}

func TestApply(t *testing.T) {
	base := baseConfig()
	cfg := Apply(base, map[string]float64{
		"boost": 0.5, "decay_rate": 0.1, "ceiling": 80, "steps": 7.4, "quantile": 0.5,
	})

	if cfg.Simulation.Boost != 0.5 || cfg.Simulation.DecayRate != 0.1 || cfg.Simulation.Ceiling != 80 {
		t.Errorf("simulation not overridden: %+v", cfg.Simulation)
	}
	if cfg.Population.Score.High != 80 {
		t.Errorf("expected score bound lowered to 80, got %f", cfg.Population.Score.High)
	}
	if base.Population.Score.High != 100 {
		t.Error("Apply mutated the base score bound")
	}
	if cfg.Simulation.Steps != 7 {
		t.Errorf("expected steps 7, got %d", cfg.Simulation.Steps)
	}
	if cfg.Scenarios[0].Quantile != 0.5 {
		t.Errorf("expected quantile 0.5, got %f", cfg.Scenarios[0].Quantile)
	}
	if base.Scenarios[0].Quantile != 0.25 {
		t.Error("Apply mutated the base config")
	}
}

func TestSearch_CeilingBelowPopulationMax(t *testing.T) {
	g, err := NewGridSearch([]string{"ceiling"}, [][]float64{{60, 80, 100}})
	if err != nil {
		t.Fatal(err)
	}

	report, err := g.Search(context.Background(), baseConfig(), "targeted", "final_gap")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, p := range report.Points {
		if p.Err != "" {
			t.Errorf("ceiling %v failed: %s", p.Params["ceiling"], p.Err)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{"0.1,0.2,0.4", []float64{0.1, 0.2, 0.4}},
		{"0:1:0.5", []float64{0, 0.5, 1}},
		{"5", []float64{5}},
		{"1:1:1", []float64{1}},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if err != nil {
			t.Errorf("ParseRange(%q): %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseRange(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("ParseRange(%q)[%d] = %f, want %f", tt.in, i, got[i], tt.want[i])
			}
		}
	}

	for _, bad := range []string{"", "a,b", "0:1", "1:0:0.1", "0:1:0"} {
		if _, err := ParseRange(bad); err == nil {
			t.Errorf("ParseRange(%q): expected error", bad)
		}
	}
}

func TestParseGrid(t *testing.T) {
	names, ranges, err := ParseGrid([]string{"decay_rate=0.1,0.2", "boost=0:0.2:0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if names[0] != "boost" || names[1] != "decay_rate" {
		t.Errorf("expected sorted names, got %v", names)
	}
	if len(ranges[0]) != 3 || len(ranges[1]) != 2 {
		t.Errorf("unexpected ranges: %v", ranges)
	}

	if _, _, err := ParseGrid([]string{"boost"}); err == nil {
		t.Error("expected error for missing '='")
	}
}

func TestPoint_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Point{Params: map[string]float64{"boost": 0.1}, Value: math.NaN(), Err: "failed"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"params":{"boost":0.1},"error":"failed","value":null}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	data, err = json.Marshal(Point{Params: map[string]float64{}, Value: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"params":{},"value":1.5}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}
