// Package sweep runs an experiment over a Cartesian grid of parameters and
// scores each point by one metric of one scenario.
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/logging"
)

// Params that Apply understands.
var Params = []string{"boost", "ceiling", "decay_rate", "quantile", "steps"}

type Point struct {
	Params map[string]float64 `json:"params"`
	Value  float64            `json:"value"`
	Err    string             `json:"error,omitempty"`
}

// MarshalJSON writes an undefined value as null.
func (p Point) MarshalJSON() ([]byte, error) {
	type alias Point
	out := struct {
		alias
		Value *float64 `json:"value"`
	}{alias: alias(p)}
	if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
		v := p.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

type Report struct {
	Scenario string  `json:"scenario"`
	Metric   string  `json:"metric"`
	Maximize bool    `json:"maximize"`
	Points   []Point `json:"points"`
	Best     *Point  `json:"best,omitempty"`
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	Maximize   bool
	logger     *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("sweep: %d params but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if !known(name) {
			return nil, fmt.Errorf("sweep: unknown param %q (available: %v)", name, Params)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("sweep: empty range for %s", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logging.Discard()}, nil
}

func (g *GridSearch) SetLogger(l *slog.Logger) { g.logger = l }

func known(name string) bool {
	for _, p := range Params {
		if p == name {
			return true
		}
	}
	return false
}

// Apply returns a copy of cfg with params overridden.
func Apply(cfg experiment.Config, params map[string]float64) experiment.Config {
	out := cfg
	out.Scenarios = append([]experiment.ScenarioSpec(nil), cfg.Scenarios...)

	for name, v := range params {
		switch name {
		case "boost":
			out.Simulation.Boost = v
		case "decay_rate":
			out.Simulation.DecayRate = v
		case "ceiling":
			out.Simulation.Ceiling = v
			if out.Population.Score.High > v {
				out.Population.Score.High = v
			}
		case "steps":
			out.Simulation.Steps = int(math.Round(v))
		case "quantile":
			for i := range out.Scenarios {
				out.Scenarios[i].Quantile = v
			}
		}
	}
	return out
}

// Search evaluates every grid point. A point whose experiment fails is
// recorded with its error and never chosen as best; only context
// cancellation aborts the search.
func (g *GridSearch) Search(ctx context.Context, base experiment.Config, scenario, metric string) (*Report, error) {
	report := &Report{Scenario: scenario, Metric: metric, Maximize: g.Maximize}

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), base, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base experiment.Config,
	report *Report,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		point := g.evaluate(ctx, base, current, report.Scenario, report.Metric)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Points = append(report.Points, point)

		if point.Err == "" && !math.IsNaN(point.Value) && g.better(point.Value, report.Best) {
			best := point
			report.Best = &best
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := maps.Clone(current)
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, report); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) better(v float64, best *Point) bool {
	if best == nil {
		return true
	}
	if g.Maximize {
		return v > best.Value
	}
	return v < best.Value
}

func (g *GridSearch) evaluate(ctx context.Context, base experiment.Config, params map[string]float64, scenario, metric string) Point {
	point := Point{Params: params, Value: math.NaN()}

	cfg := Apply(base, params)
	result, err := experiment.New(cfg).Run(ctx)
	if err != nil {
		point.Err = err.Error()
		g.logger.Warn("grid point failed", "params", params, "err", err)
		return point
	}

	sr, ok := result.Scenario(scenario)
	if !ok {
		point.Err = fmt.Sprintf("scenario %s not in experiment", scenario)
		return point
	}
	val, ok := sr.Result.Metrics[metric]
	if !ok {
		point.Err = fmt.Sprintf("unknown metric %s", metric)
		return point
	}

	point.Value = val
	g.logger.Debug("grid point", "params", params, metric, val)
	return point
}

// ParseRange accepts either a comma list ("0.1,0.2,0.4") or an inclusive
// start:stop:step range ("0:0.5:0.1").
func ParseRange(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty range")
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("range %q: want start:stop:step", s)
		}
		var v [3]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", s, err)
			}
			v[i] = f
		}
		start, stop, step := v[0], v[1], v[2]
		if step <= 0 || stop < start {
			return nil, fmt.Errorf("range %q: need step > 0 and stop >= start", s)
		}
		n := int(math.Floor((stop-start)/step+1e-9)) + 1
		out := make([]float64, n)
		for i := range out {
			out[i] = start + float64(i)*step
		}
		return out, nil
	}

	var out []float64
	for _, p := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseGrid parses "name=range" specs into parallel name and range slices,
// sorted by name.
func ParseGrid(specs []string) ([]string, [][]float64, error) {
	grid := make(map[string][]float64, len(specs))
	for _, spec := range specs {
		name, rng, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("grid spec %q: want name=range", spec)
		}
		vals, err := ParseRange(rng)
		if err != nil {
			return nil, nil, err
		}
		grid[strings.TrimSpace(name)] = vals
	}

	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	ranges := make([][]float64, len(names))
	for i, name := range names {
		ranges[i] = grid[name]
	}
	return names, ranges, nil
}
