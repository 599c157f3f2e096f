// Package state tracks pipeline run history in SQLite. Every invocation
// of the processing pipeline is recorded as a run with one record per
// executed stage, so operators can see what happened on a cluster node
// after the fact.
package state

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StageStatus is the lifecycle state of a single stage within a run.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID          string
	Environment string
	Project     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StageRun is the execution record of one stage within a run.
type StageRun struct {
	ID         string
	RunID      string
	Stage      string
	Status     StageStatus
	Command    string
	DurationMS int64
	StartedAt  time.Time
	Error      string
}

// Store persists runs and stage runs.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(env, project string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	CreateStageRun(runID, stage, command string) (*StageRun, error)
	UpdateStageRun(id string, status StageStatus, durationMS int64, errMsg string) error
	ListStageRuns(runID string) ([]*StageRun, error)
}
