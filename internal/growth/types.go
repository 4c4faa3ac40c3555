package growth

import "math"

type Group string

const (
	Treatment Group = "Treatment"
	Control   Group = "Control"
)

func (g Group) Valid() bool {
	return g == Treatment || g == Control
}

// Individual is one simulated student. Attributes are fixed for a run.
type Individual struct {
	ID           int     `json:"id"`
	InitialScore float64 `json:"initial_score"`
	BaselineRate float64 `json:"baseline_rate"`
	Group        Group   `json:"group,omitempty"`
}

type Population []Individual

func (p Population) Clone() Population {
	c := make(Population, len(p))
	copy(c, p)
	return c
}

func (p Population) Scores() []float64 {
	s := make([]float64, len(p))
	for i, ind := range p {
		s[i] = ind.InitialScore
	}
	return s
}

// Assignment maps individual id to group label.
type Assignment map[int]Group

// Count returns how many ids are assigned to g.
func (a Assignment) Count(g Group) int {
	n := 0
	for _, v := range a {
		if v == g {
			n++
		}
	}
	return n
}

// Row is one (individual, time) observation of the trajectory table.
type Row struct {
	ID    int     `json:"id"`
	T     int     `json:"t"`
	Score float64 `json:"score"`
	Group Group   `json:"group"`
}

type Metric interface {
	Name() string
	Observe(t int, rows []Row)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(t int, rows []Row)
}

type Config struct {
	Steps     int     `json:"steps"`
	Ceiling   float64 `json:"ceiling"`
	Boost     float64 `json:"boost"`
	DecayRate float64 `json:"decay_rate"`
	// Workers > 1 splits each step's sweep across goroutines.
	Workers int `json:"workers,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Steps:     20,
		Ceiling:   100.0,
		Boost:     0.15,
		DecayRate: 0.25,
	}
}

func (c Config) Validate() error {
	if c.Steps < 0 {
		return Invalid("steps", c.Steps, "time horizon must be non-negative")
	}
	if c.Ceiling <= 0 || !finite(c.Ceiling) {
		return Invalid("ceiling", c.Ceiling, "must be positive and finite")
	}
	if c.DecayRate < 0 || !finite(c.DecayRate) {
		return Invalid("decay_rate", c.DecayRate, "must be non-negative and finite")
	}
	if !finite(c.Boost) {
		return Invalid("boost", c.Boost, "must be finite")
	}
	if c.Workers < 0 {
		return Invalid("workers", c.Workers, "must be non-negative")
	}
	return nil
}

// Result is the long-format trajectory table plus run summary.
type Result struct {
	Rows    []Row              `json:"rows"`
	Steps   int                `json:"steps"`
	Size    int                `json:"size"`
	Clamped int                `json:"clamped"`
	Metrics map[string]float64 `json:"metrics"`
}

// At returns the rows of time step t. Rows are stored t-major, so this is a
// subslice of Rows.
func (r *Result) At(t int) []Row {
	if t < 0 || t > r.Steps || r.Size == 0 {
		return nil
	}
	return r.Rows[t*r.Size : (t+1)*r.Size]
}

// Scores returns the scores of group g at time step t.
func (r *Result) Scores(t int, g Group) []float64 {
	rows := r.At(t)
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.Group == g {
			out = append(out, row.Score)
		}
	}
	return out
}

// Trajectory returns the scores of individual id for t = 0..Steps.
func (r *Result) Trajectory(id int) []float64 {
	out := make([]float64, 0, r.Steps+1)
	for t := 0; t <= r.Steps; t++ {
		for _, row := range r.At(t) {
			if row.ID == id {
				out = append(out, row.Score)
				break
			}
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
