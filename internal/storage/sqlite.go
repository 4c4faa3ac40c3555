package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	metadata   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trajectory (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	id       INTEGER NOT NULL,
	t        INTEGER NOT NULL,
	score    REAL NOT NULL,
	grp      TEXT NOT NULL,
	PRIMARY KEY (run_id, scenario, seq)
);
CREATE TABLE IF NOT EXISTS effects (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario    TEXT NOT NULL,
	t           INTEGER NOT NULL,
	cohens_d    REAL,
	n_treatment INTEGER NOT NULL,
	n_control   INTEGER NOT NULL,
	PRIMARY KEY (run_id, scenario, t)
);
CREATE TABLE IF NOT EXISTS population (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	id            INTEGER NOT NULL,
	initial_score REAL NOT NULL,
	baseline_rate REAL NOT NULL,
	grp           TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore keeps all runs in one database. Metadata is stored as JSON;
// tables are stored row by row.
type SQLiteStore struct {
	db *sql.DB
}

var errNotConfigured = errors.New("storage: sqlite store is not open")

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// nullFloat stores NaN as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (s *SQLiteStore) Save(meta RunMetadata, result *experiment.Result) (string, error) {
	if s == nil || s.db == nil {
		return "", errNotConfigured
	}
	meta = prepare(meta, result)

	blob, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, created_at, metadata) VALUES (?, ?, ?)`,
		meta.ID, meta.Timestamp.UnixNano(), string(blob),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := insertPopulation(tx, meta.ID, result.Population); err != nil {
		return "", err
	}
	for _, sr := range result.Scenarios {
		if err := insertScenario(tx, meta.ID, sr); err != nil {
			return "", fmt.Errorf("scenario %s: %w", sr.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return meta.ID, nil
}

func insertPopulation(tx *sql.Tx, runID string, pop growth.Population) error {
	stmt, err := tx.Prepare(`INSERT INTO population (run_id, seq, id, initial_score, baseline_rate, grp) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ind := range pop {
		if _, err := stmt.Exec(runID, i, ind.ID, ind.InitialScore, ind.BaselineRate, string(ind.Group)); err != nil {
			return fmt.Errorf("insert individual %d: %w", ind.ID, err)
		}
	}
	return nil
}

func insertScenario(tx *sql.Tx, runID string, sr experiment.ScenarioResult) error {
	rowStmt, err := tx.Prepare(`INSERT INTO trajectory (run_id, scenario, seq, id, t, score, grp) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()

	for i, row := range sr.Result.Rows {
		if _, err := rowStmt.Exec(runID, sr.Name, i, row.ID, row.T, row.Score, string(row.Group)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	effStmt, err := tx.Prepare(`INSERT INTO effects (run_id, scenario, t, cohens_d, n_treatment, n_control) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer effStmt.Close()

	for _, e := range sr.Effects {
		if _, err := effStmt.Exec(runID, sr.Name, e.T, nullFloat(e.D), e.NTreatment, e.NControl); err != nil {
			return fmt.Errorf("insert effect t=%d: %w", e.T, err)
		}
	}
	return nil
}

func (s *SQLiteStore) List() ([]RunMetadata, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	rows, err := s.db.Query(`SELECT metadata FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(blob), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(runID string) (*RunMetadata, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	var blob string
	err := s.db.QueryRow(`SELECT metadata FROM runs WHERE id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal([]byte(blob), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// exists distinguishes an unknown run from a run with empty tables.
func (s *SQLiteStore) exists(runID string) error {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run not found: %s", runID)
	}
	return err
}

func (s *SQLiteStore) LoadTrajectory(runID string) ([]TrajectoryRow, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	if err := s.exists(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT scenario, id, t, score, grp FROM trajectory WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TrajectoryRow, 0)
	for rows.Next() {
		var r TrajectoryRow
		var group string
		if err := rows.Scan(&r.Scenario, &r.ID, &r.T, &r.Score, &group); err != nil {
			return nil, err
		}
		r.Group = growth.Group(group)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadEffects(runID string) ([]EffectRow, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	if err := s.exists(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT scenario, t, cohens_d, n_treatment, n_control FROM effects WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]EffectRow, 0)
	for rows.Next() {
		var r EffectRow
		var d sql.NullFloat64
		if err := rows.Scan(&r.Scenario, &r.T, &d, &r.NTreatment, &r.NControl); err != nil {
			return nil, err
		}
		r.D = math.NaN()
		if d.Valid {
			r.D = d.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadPopulation(runID string) (growth.Population, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	if err := s.exists(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, initial_score, baseline_rate, grp FROM population WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pop := make(growth.Population, 0)
	for rows.Next() {
		var ind growth.Individual
		var group string
		if err := rows.Scan(&ind.ID, &ind.InitialScore, &ind.BaselineRate, &group); err != nil {
			return nil, err
		}
		ind.Group = growth.Group(group)
		pop = append(pop, ind)
	}
	return pop, rows.Err()
}
