package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/growth"
	"github.com/san-kum/growthsim/internal/logging"
	"github.com/san-kum/growthsim/internal/metrics"
)

type PopulationConfig struct {
	Size  int                      `json:"size"`
	Seed  uint64                   `json:"seed"`
	Score growth.ScoreDistribution `json:"score"`
	Rate  growth.RateDistribution  `json:"rate"`
}

// ScenarioSpec selects a registered scenario and its parameters. Fields a
// scenario does not use are ignored.
type ScenarioSpec struct {
	Name     string  `json:"name"`
	Quantile float64 `json:"quantile"`
	Treated  int     `json:"treated,omitempty"`
	Seed     uint64  `json:"seed,omitempty"`
}

type Config struct {
	Population PopulationConfig `json:"population"`
	Simulation growth.Config    `json:"simulation"`
	Scenarios  []ScenarioSpec   `json:"scenarios"`
}

type ScenarioResult struct {
	Name    string              `json:"name"`
	Treated int                 `json:"treated"`
	Result  *growth.Result      `json:"result"`
	Means   []effect.GroupMean  `json:"means"`
	Effects []effect.EffectSize `json:"effects"`
	Elapsed time.Duration       `json:"elapsed"`
}

type Result struct {
	Population growth.Population `json:"population"`
	Scenarios  []ScenarioResult  `json:"scenarios"`
}

func (r *Result) Scenario(name string) (*ScenarioResult, bool) {
	for i := range r.Scenarios {
		if r.Scenarios[i].Name == name {
			return &r.Scenarios[i], true
		}
	}
	return nil, false
}

type Experiment struct {
	cfg        Config
	registry   *Registry
	logger     *slog.Logger
	population growth.Population
	observers  []growth.Observer
}

func New(cfg Config) *Experiment {
	return &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logging.Discard(),
	}
}

func (e *Experiment) SetLogger(l *slog.Logger) { e.logger = l }

// UsePopulation skips generation and runs every scenario on pop.
func (e *Experiment) UsePopulation(pop growth.Population) { e.population = pop }

// AddObserver attaches o to every scenario's simulator.
func (e *Experiment) AddObserver(o growth.Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Config() Config { return e.cfg }

// Run generates (or reuses) one population and simulates every configured
// scenario on it. Any failure aborts the whole experiment.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if len(e.cfg.Scenarios) == 0 {
		return nil, fmt.Errorf("experiment: no scenarios configured")
	}
	if err := e.cfg.Simulation.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(e.cfg.Scenarios))
	for _, spec := range e.cfg.Scenarios {
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("experiment: duplicate scenario %q", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	pop := e.population
	if pop == nil {
		var err error
		pc := e.cfg.Population
		pop, err = growth.GeneratePopulation(pc.Size, pc.Score, pc.Rate, pc.Seed)
		if err != nil {
			return nil, fmt.Errorf("generate population: %w", err)
		}
		e.logger.Debug("population generated", "size", len(pop), "seed", pc.Seed)
	}

	result := &Result{
		Population: pop,
		Scenarios:  make([]ScenarioResult, 0, len(e.cfg.Scenarios)),
	}

	for _, spec := range e.cfg.Scenarios {
		sr, err := e.runScenario(ctx, spec, pop)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", spec.Name, err)
		}
		result.Scenarios = append(result.Scenarios, *sr)
	}

	return result, nil
}

func (e *Experiment) runScenario(ctx context.Context, spec ScenarioSpec, pop growth.Population) (*ScenarioResult, error) {
	assigner, err := e.registry.GetScenario(spec)
	if err != nil {
		return nil, err
	}

	groups, err := assigner.Assign(pop)
	if err != nil {
		return nil, fmt.Errorf("assign: %w", err)
	}

	sim := growth.New(e.cfg.Simulation)
	for _, m := range metrics.Defaults(e.cfg.Simulation.Ceiling) {
		sim.AddMetric(m)
	}
	for _, o := range e.observers {
		sim.AddObserver(o)
	}

	start := time.Now()
	res, err := sim.Run(ctx, pop, groups)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	sr := &ScenarioResult{
		Name:    spec.Name,
		Treated: groups.Count(growth.Treatment),
		Result:  res,
		Means:   effect.GroupMeans(res.Rows),
		Effects: effect.EffectSizes(res.Rows),
		Elapsed: elapsed,
	}

	if res.Clamped > 0 {
		e.logger.Warn("scores clamped to bounds", "scenario", spec.Name, "updates", res.Clamped)
	}
	e.logger.Info("scenario complete",
		"scenario", spec.Name,
		"treated", sr.Treated,
		"rows", len(res.Rows),
		"elapsed", elapsed,
	)

	return sr, nil
}
