package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/growthsim/internal/scenario"
)

type Registry struct {
	scenarios map[string]func(ScenarioSpec) scenario.Assigner
}

func NewRegistry() *Registry {
	r := &Registry{
		scenarios: make(map[string]func(ScenarioSpec) scenario.Assigner),
	}

	r.scenarios["targeted"] = func(spec ScenarioSpec) scenario.Assigner {
		return scenario.Targeted{Quantile: spec.Quantile}
	}
	r.scenarios["general"] = func(spec ScenarioSpec) scenario.Assigner {
		return scenario.Randomized{Treated: spec.Treated, Quantile: spec.Quantile, Seed: spec.Seed}
	}

	return r
}

// Register adds or replaces a scenario builder.
func (r *Registry) Register(name string, build func(ScenarioSpec) scenario.Assigner) {
	r.scenarios[name] = build
}

func (r *Registry) GetScenario(spec ScenarioSpec) (scenario.Assigner, error) {
	fn, ok := r.scenarios[spec.Name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s (available: %v)", spec.Name, r.ListScenarios())
	}
	return fn(spec), nil
}

func (r *Registry) ListScenarios() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
