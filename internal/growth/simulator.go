package growth

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	cfg       Config
	metrics   []Metric
	observers []Observer
}

func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:       cfg,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) Config() Config { return s.cfg }

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run advances pop through cfg.Steps synchronous steps and returns the full
// trajectory table. Group labels come from groups, falling back to each
// individual's own Group and then to Control.
//
// Run either returns the complete table or an error; a canceled context
// yields no partial result.
func (s *Simulator) Run(ctx context.Context, pop Population, groups Assignment) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	labels, err := s.resolve(pop, groups)
	if err != nil {
		return nil, err
	}

	n := len(pop)
	steps := s.cfg.Steps
	ceiling := s.cfg.Ceiling

	result := &Result{
		Rows:    make([]Row, 0, n*(steps+1)),
		Steps:   steps,
		Size:    n,
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	scores := make([]float64, n)
	next := make([]float64, n)
	clamped := make([]bool, n)
	treated := make([]bool, n)
	for i, ind := range pop {
		scores[i] = ind.InitialScore
		treated[i] = labels[i] == Treatment
	}

	s.record(result, 0, pop, scores, labels)

	for t := 1; t <= steps; t++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w at step %d: %w", ErrCanceled, t, ctx.Err())
		default:
		}

		ParallelFor(n, s.cfg.Workers, func(start, end int) {
			for i := start; i < end; i++ {
				rate := EffectiveRate(t, pop[i].BaselineRate, treated[i], s.cfg.Boost, s.cfg.DecayRate)
				next[i], clamped[i] = Advance(scores[i], rate, ceiling)
			}
		})

		for i := range clamped {
			if clamped[i] {
				result.Clamped++
			}
		}
		scores, next = next, scores

		s.record(result, t, pop, scores, labels)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) record(result *Result, t int, pop Population, scores []float64, labels []Group) {
	start := len(result.Rows)
	for i, ind := range pop {
		result.Rows = append(result.Rows, Row{ID: ind.ID, T: t, Score: scores[i], Group: labels[i]})
	}
	rows := result.Rows[start:]
	for _, m := range s.metrics {
		m.Observe(t, rows)
	}
	for _, obs := range s.observers {
		obs.OnStep(t, rows)
	}
}

// resolve validates pop against the configured ceiling and fixes each
// individual's group for the run.
func (s *Simulator) resolve(pop Population, groups Assignment) ([]Group, error) {
	if len(pop) == 0 {
		return nil, Invalid("population", 0, "must not be empty")
	}

	seen := make(map[int]struct{}, len(pop))
	labels := make([]Group, len(pop))
	for i, ind := range pop {
		if _, dup := seen[ind.ID]; dup {
			return nil, Invalid("id", ind.ID, "duplicate individual id")
		}
		seen[ind.ID] = struct{}{}

		if math.IsNaN(ind.InitialScore) || ind.InitialScore < 0 || ind.InitialScore > s.cfg.Ceiling {
			return nil, Invalid("initial_score", ind.InitialScore, "must lie in [0, ceiling]")
		}
		if ind.BaselineRate < 0 || !finite(ind.BaselineRate) {
			return nil, Invalid("baseline_rate", ind.BaselineRate, "must be non-negative and finite")
		}

		g, ok := groups[ind.ID]
		if !ok {
			g = ind.Group
		}
		if g == "" {
			g = Control
		}
		if !g.Valid() {
			return nil, Invalid("group", g, "must be Treatment or Control")
		}
		labels[i] = g
	}
	return labels, nil
}
