// Package storage persists experiment runs. Two backends implement
// Repository: FileStore writes one directory per run with JSON metadata and
// CSV tables, SQLiteStore keeps every run in a single database file.
package storage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

type Repository interface {
	Init() error
	// Save stores result under a fresh run id and returns that id.
	Save(meta RunMetadata, result *experiment.Result) (string, error)
	List() ([]RunMetadata, error)
	Load(runID string) (*RunMetadata, error)
	LoadTrajectory(runID string) ([]TrajectoryRow, error)
	LoadEffects(runID string) ([]EffectRow, error)
	LoadPopulation(runID string) (growth.Population, error)
	Close() error
}

type RunMetadata struct {
	ID        string            `json:"id"`
	Preset    string            `json:"preset,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Seed      uint64            `json:"seed"`
	Config    experiment.Config `json:"config"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

type ScenarioSummary struct {
	Name    string  `json:"name"`
	Treated int     `json:"treated"`
	Clamped int     `json:"clamped"`
	Elapsed float64 `json:"elapsed_ms"`
	// Metrics holds only finite values.
	Metrics map[string]float64 `json:"metrics"`
}

type TrajectoryRow struct {
	Scenario string
	growth.Row
}

type EffectRow struct {
	Scenario string
	effect.EffectSize
}

// Open returns the repository for backend rooted at dir.
func Open(backend, dir string) (Repository, error) {
	switch backend {
	case "", BackendFiles:
		return NewFileStore(dir), nil
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		return OpenSQLite(filepath.Join(dir, "growthsim.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (available: %s, %s)", backend, BackendFiles, BackendSQLite)
	}
}

func newRunID(now time.Time) string {
	return fmt.Sprintf("run_%d", now.UnixNano())
}

// prepare stamps meta with a new id and summarizes every scenario.
func prepare(meta RunMetadata, result *experiment.Result) RunMetadata {
	now := time.Now()
	meta.ID = newRunID(now)
	meta.Timestamp = now
	meta.Seed = meta.Config.Population.Seed
	meta.Scenarios = make([]ScenarioSummary, 0, len(result.Scenarios))

	for _, sr := range result.Scenarios {
		summary := ScenarioSummary{
			Name:    sr.Name,
			Treated: sr.Treated,
			Elapsed: float64(sr.Elapsed.Microseconds()) / 1000,
			Metrics: make(map[string]float64),
		}
		if sr.Result != nil {
			summary.Clamped = sr.Result.Clamped
			for k, v := range sr.Result.Metrics {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					summary.Metrics[k] = v
				}
			}
		}
		meta.Scenarios = append(meta.Scenarios, summary)
	}
	return meta
}

func sortRuns(runs []RunMetadata) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
}

// Rows returns the trajectory rows of one scenario in stored order.
func Rows(rows []TrajectoryRow, scenario string) []growth.Row {
	var out []growth.Row
	for _, r := range rows {
		if r.Scenario == scenario {
			out = append(out, r.Row)
		}
	}
	return out
}

// Effects returns the effect sizes of one scenario in stored order.
func Effects(rows []EffectRow, scenario string) []effect.EffectSize {
	var out []effect.EffectSize
	for _, r := range rows {
		if r.Scenario == scenario {
			out = append(out, r.EffectSize)
		}
	}
	return out
}
