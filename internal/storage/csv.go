package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

var (
	trajectoryHeader = []string{"scenario", "id", "t", "score", "group"}
	effectHeader     = []string{"scenario", "t", "cohens_d", "n_treatment", "n_control"}
	populationHeader = []string{"id", "initial_score", "baseline_rate", "group"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// TrajectoryRows flattens every scenario's table into one long table.
func TrajectoryRows(result *experiment.Result) []TrajectoryRow {
	var out []TrajectoryRow
	for _, sr := range result.Scenarios {
		for _, row := range sr.Result.Rows {
			out = append(out, TrajectoryRow{Scenario: sr.Name, Row: row})
		}
	}
	return out
}

func EffectRows(result *experiment.Result) []EffectRow {
	var out []EffectRow
	for _, sr := range result.Scenarios {
		for _, e := range sr.Effects {
			out = append(out, EffectRow{Scenario: sr.Name, EffectSize: e})
		}
	}
	return out
}

func WriteTrajectoryCSV(w io.Writer, rows []TrajectoryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(trajectoryHeader); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{
			row.Scenario,
			strconv.Itoa(row.ID),
			strconv.Itoa(row.T),
			formatFloat(row.Score),
			string(row.Group),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteEffectsCSV(w io.Writer, rows []EffectRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(effectHeader); err != nil {
		return err
	}
	for _, e := range rows {
		rec := []string{
			e.Scenario,
			strconv.Itoa(e.T),
			formatFloat(e.D),
			strconv.Itoa(e.NTreatment),
			strconv.Itoa(e.NControl),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePopulationCSV(w io.Writer, pop growth.Population) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(populationHeader); err != nil {
		return err
	}
	for _, ind := range pop {
		rec := []string{
			strconv.Itoa(ind.ID),
			formatFloat(ind.InitialScore),
			formatFloat(ind.BaselineRate),
			string(ind.Group),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readTable reads a CSV with a header row and maps each required column to
// its index. Columns may appear in any order.
func readTable(r io.Reader, required []string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv: missing header")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("csv: missing column %q", name)
		}
	}
	return records[1:], cols, nil
}

type fieldReader struct {
	rec  []string
	cols map[string]int
	line int
	err  error
}

func (f *fieldReader) str(name string) string {
	i, ok := f.cols[name]
	if !ok || i >= len(f.rec) {
		return ""
	}
	return strings.TrimSpace(f.rec[i])
}

func (f *fieldReader) int(name string) int {
	if f.err != nil {
		return 0
	}
	v, err := strconv.Atoi(f.str(name))
	if err != nil {
		f.err = fmt.Errorf("line %d: %s: %w", f.line, name, err)
	}
	return v
}

func (f *fieldReader) float(name string) float64 {
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(f.str(name), 64)
	if err != nil {
		f.err = fmt.Errorf("line %d: %s: %w", f.line, name, err)
	}
	return v
}

func ReadTrajectoryCSV(r io.Reader) ([]TrajectoryRow, error) {
	records, cols, err := readTable(r, trajectoryHeader)
	if err != nil {
		return nil, err
	}
	rows := make([]TrajectoryRow, 0, len(records))
	for i, rec := range records {
		f := &fieldReader{rec: rec, cols: cols, line: i + 2}
		row := TrajectoryRow{
			Scenario: f.str("scenario"),
			Row: growth.Row{
				ID:    f.int("id"),
				T:     f.int("t"),
				Score: f.float("score"),
				Group: growth.Group(f.str("group")),
			},
		}
		if f.err != nil {
			return nil, f.err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func ReadEffectsCSV(r io.Reader) ([]EffectRow, error) {
	records, cols, err := readTable(r, effectHeader)
	if err != nil {
		return nil, err
	}
	rows := make([]EffectRow, 0, len(records))
	for i, rec := range records {
		f := &fieldReader{rec: rec, cols: cols, line: i + 2}
		row := EffectRow{
			Scenario: f.str("scenario"),
			EffectSize: effect.EffectSize{
				T:          f.int("t"),
				D:          f.float("cohens_d"),
				NTreatment: f.int("n_treatment"),
				NControl:   f.int("n_control"),
			},
		}
		if f.err != nil {
			return nil, f.err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadPopulationCSV reads a pre-generated population. The group column is
// optional; blank or missing groups are resolved by the simulator.
func ReadPopulationCSV(r io.Reader) (growth.Population, error) {
	records, cols, err := readTable(r, populationHeader[:3])
	if err != nil {
		return nil, err
	}
	pop := make(growth.Population, 0, len(records))
	for i, rec := range records {
		f := &fieldReader{rec: rec, cols: cols, line: i + 2}
		ind := growth.Individual{
			ID:           f.int("id"),
			InitialScore: f.float("initial_score"),
			BaselineRate: f.float("baseline_rate"),
			Group:        growth.Group(f.str("group")),
		}
		if f.err != nil {
			return nil, f.err
		}
		if ind.Group != "" && !ind.Group.Valid() {
			return nil, fmt.Errorf("line %d: invalid group %q", i+2, ind.Group)
		}
		pop = append(pop, ind)
	}
	return pop, nil
}
