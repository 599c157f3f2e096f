// Package engine orchestrates the photogrammetry pipeline. Stages form a
// dependency graph and execute in topological order; the heavy lifting in
// every stage is delegated to external tools, so the engine's job is
// sequencing, pre-flight validation, and run bookkeeping.
package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/snowpitlab/pitctl/internal/dag"
	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/runner"
	"github.com/snowpitlab/pitctl/internal/state"
)

// Stage identifiers, in pipeline order.
const (
	StagePreflight = "preflight"
	StageProcess   = "process"
	StageExport    = "export"
	StageTiles     = "tiles"
)

// Config holds engine configuration.
type Config struct {
	// Project settings forwarded to the photogrammetry application.
	ProjectName string
	OutputPath  string
	ImageFolder string
	ImageType   string
	MarkerFile  string
	Quality     metashape.Quality

	// External application settings.
	MetashapeBinary string
	MetashapeScript string
	Offscreen       bool

	// Tiling settings.
	TilesTool string
	TilesDir  string

	// Environment name recorded with each run (local, hpc, ...).
	Environment string
	// StatePath is the path to the SQLite run history database.
	StatePath string

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Runner executes external tools (optional, defaults to ExecRunner).
	Runner runner.Runner
	// Stdout and Stderr receive streamed tool output (optional).
	Stdout io.Writer
	Stderr io.Writer
}

// Engine executes the pipeline.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	run    runner.Runner
	store  state.Store
	graph  *dag.Graph
	stages map[string]stage
}

// New creates an engine and opens the run history store.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := cfg.Runner
	if r == nil {
		r = runner.ExecRunner{}
	}
	if cfg.ImageType == "" {
		cfg.ImageType = metashape.DefaultImageType
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}

	if err := cfg.invocation(false).Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	logger.Debug("initializing engine",
		"project", cfg.ProjectName, "environment", cfg.Environment)

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		run:    r,
		store:  store,
	}
	e.buildStages()
	return e, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the run history store for read-only commands.
func (e *Engine) Store() state.Store {
	return e.store
}

// Graph returns the stage dependency graph.
func (e *Engine) Graph() *dag.Graph {
	return e.graph
}

// invocation builds the external application invocation for this project.
func (c Config) invocation(export bool) metashape.Invocation {
	return metashape.Invocation{
		Binary:      c.MetashapeBinary,
		Script:      c.MetashapeScript,
		Offscreen:   c.Offscreen,
		ProjectName: c.ProjectName,
		OutputPath:  c.OutputPath,
		ImageFolder: c.ImageFolder,
		ImageType:   c.ImageType,
		MarkerFile:  c.MarkerFile,
		Quality:     c.Quality,
		Export:      export,
	}
}

// Invocation exposes the process invocation, used by the batch command to
// embed the same command line in a cluster submission script.
func (e *Engine) Invocation(export bool) metashape.Invocation {
	return e.cfg.invocation(export)
}

// PointCloudFile returns the expected export artifact path.
func (e *Engine) PointCloudFile() string {
	return e.cfg.invocation(false).PointCloudFile()
}

// ReportFile returns the expected processing report path.
func (e *Engine) ReportFile() string {
	return e.cfg.invocation(false).ReportFile()
}
