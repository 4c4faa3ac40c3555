package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
	effectsFile    = "effect_sizes.csv"
	populationFile = "population.csv"
)

// FileStore keeps each run in <baseDir>/<run_id>/.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Save(meta RunMetadata, result *experiment.Result) (string, error) {
	meta = prepare(meta, result)

	// metadata.json goes last: List only shows runs that have it.
	err := writeRun(filepath.Join(s.baseDir, meta.ID), []runFile{
		{trajectoryFile, func(w io.Writer) error { return WriteTrajectoryCSV(w, TrajectoryRows(result)) }},
		{effectsFile, func(w io.Writer) error { return WriteEffectsCSV(w, EffectRows(result)) }},
		{populationFile, func(w io.Writer) error { return WritePopulationCSV(w, result.Population) }},
		{metadataFile, func(w io.Writer) error { return WriteJSON(w, meta) }},
	})
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

type runFile struct {
	name  string
	write func(io.Writer) error
}

// writeRun writes files into runDir in order. On any failure runDir is
// removed so no partial run is left behind.
func writeRun(runDir string, files []runFile) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(runDir, f.name), f.write); err != nil {
			os.RemoveAll(runDir)
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStore) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sortRuns(runs)
	return runs, nil
}

func (s *FileStore) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) LoadTrajectory(runID string) ([]TrajectoryRow, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrajectoryCSV(f)
}

func (s *FileStore) LoadEffects(runID string) ([]EffectRow, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, effectsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEffectsCSV(f)
}

func (s *FileStore) LoadPopulation(runID string) (growth.Population, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, populationFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPopulationCSV(f)
}
