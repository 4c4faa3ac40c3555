package storage

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/growthsim/internal/growth"
)

func TestReadPopulationCSV(t *testing.T) {
	in := "id,initial_score,baseline_rate,group\n" +
		"0,40,0.05,Treatment\n" +
		"1,45.5,0.06,\n"

	pop, err := ReadPopulationCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(pop) != 2 {
		t.Fatalf("expected 2 individuals, got %d", len(pop))
	}
	want := growth.Individual{ID: 0, InitialScore: 40, BaselineRate: 0.05, Group: growth.Treatment}
	if pop[0] != want {
		t.Errorf("expected %+v, got %+v", want, pop[0])
	}
	if pop[1].Group != "" || pop[1].InitialScore != 45.5 {
		t.Errorf("unexpected second row: %+v", pop[1])
	}
}

func TestReadPopulationCSV_ColumnOrder(t *testing.T) {
	in := "baseline_rate,id,initial_score\n0.05,7,30\n"

	pop, err := ReadPopulationCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if pop[0].ID != 7 || pop[0].InitialScore != 30 || pop[0].BaselineRate != 0.05 {
		t.Errorf("unexpected row: %+v", pop[0])
	}
}

func TestReadPopulationCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "id,initial_score\n0,40\n"},
		{"bad number", "id,initial_score,baseline_rate\n0,forty,0.05\n"},
		{"bad group", "id,initial_score,baseline_rate,group\n0,40,0.05,Placebo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadPopulationCSV(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPopulationCSVRoundTrip(t *testing.T) {
	pop, err := growth.GeneratePopulation(10,
		growth.ScoreDistribution{Mean: 50, StdDev: 15, Low: 0, High: 100},
		growth.RateDistribution{Mean: 0.05, StdDev: 0.01},
		3)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WritePopulationCSV(&buf, pop); err != nil {
		t.Fatal(err)
	}
	back, err := ReadPopulationCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for i := range pop {
		if back[i] != pop[i] {
			t.Errorf("individual %d: expected %+v, got %+v", i, pop[i], back[i])
		}
	}
}

func TestReadEffectsCSV_NaN(t *testing.T) {
	in := "scenario,t,cohens_d,n_treatment,n_control\ntargeted,0,NaN,1,9\n"

	rows, err := ReadEffectsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !math.IsNaN(rows[0].D) || rows[0].NControl != 9 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestTrajectoryCSVRoundTrip(t *testing.T) {
	_, result := runExperiment(t)
	rows := TrajectoryRows(result)

	var buf bytes.Buffer
	if err := WriteTrajectoryCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "scenario,id,t,score,group\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	back, err := ReadTrajectoryCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(back))
	}
	for i := range rows {
		if back[i] != rows[i] {
			t.Fatalf("row %d: expected %+v, got %+v", i, rows[i], back[i])
		}
	}
}
