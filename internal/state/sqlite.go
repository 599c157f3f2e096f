package state

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	} else {
		dsn = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the database schema.
func (s *SQLiteStore) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

// CreateRun records the start of a new pipeline run.
func (s *SQLiteStore) CreateRun(env, project string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:          generateID(),
		Environment: env,
		Project:     project,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("environment", env))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, project, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Environment, run.Project, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := scan(&run.ID, &run.Environment, &run.Project, &run.Status,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, environment, project, status, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run for an environment.
// Returns nil without error if the environment has no runs yet.
func (s *SQLiteStore) GetLatestRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, environment, project, status, started_at, completed_at, error
		 FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`, env,
	)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, environment, project, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateStageRun records the start of a stage within a run.
func (s *SQLiteStore) CreateStageRun(runID, stage, command string) (*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StageRun{
		ID:        generateID(),
		RunID:     runID,
		Stage:     stage,
		Status:    StageStatusRunning,
		Command:   command,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating stage run",
		slog.String("run_id", runID), slog.String("stage", stage))

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, status, command, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.Stage, sr.Status, sr.Command, sr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage run: %w", err)
	}
	return sr, nil
}

// UpdateStageRun records the outcome of a stage.
func (s *SQLiteStore) UpdateStageRun(id string, status StageStatus, durationMS int64, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, duration_ms = ?, error = ? WHERE id = ?`,
		status, durationMS, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update stage run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}
	return nil
}

// ListStageRuns retrieves stage records for a run in execution order.
func (s *SQLiteStore) ListStageRuns(runID string) ([]*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, status, command, duration_ms, started_at, error
		 FROM stage_runs WHERE run_id = ? ORDER BY started_at`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	defer rows.Close()

	var stages []*StageRun
	for rows.Next() {
		sr := &StageRun{}
		var errMsg sql.NullString
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Stage, &sr.Status, &sr.Command,
			&sr.DurationMS, &sr.StartedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		if errMsg.Valid {
			sr.Error = errMsg.String
		}
		stages = append(stages, sr)
	}
	return stages, rows.Err()
}
