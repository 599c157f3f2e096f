package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/snowpitlab/pitctl/internal/dag"
	"github.com/snowpitlab/pitctl/internal/markers"
	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/tiles"
)

// stage is a single unit of pipeline work. command is the human-readable
// command line recorded in run history; internal stages leave it empty.
type stage struct {
	name    string
	command string
	fn      func(ctx context.Context) error
}

// buildStages constructs the stage graph:
//
//	preflight -> process -> export -> tiles
func (e *Engine) buildStages() {
	e.stages = map[string]stage{
		StagePreflight: {
			name: StagePreflight,
			fn:   e.runPreflight,
		},
		StageProcess: {
			name:    StageProcess,
			command: e.cfg.invocation(false).String(),
			fn:      e.runProcess,
		},
		StageExport: {
			name:    StageExport,
			command: e.cfg.invocation(true).String(),
			fn:      e.runExport,
		},
		StageTiles: {
			name:    StageTiles,
			command: strings.Join(append([]string{e.cfg.TilesTool}, tiles.ConvertArgs(e.PointCloudFile(), e.tilesDir(), true)...), " "),
			fn:      e.runTiles,
		},
	}

	g := dag.New()
	for name := range e.stages {
		g.AddNode(name)
	}
	// Edges over known nodes cannot fail.
	_ = g.AddEdge(StagePreflight, StageProcess)
	_ = g.AddEdge(StageProcess, StageExport)
	_ = g.AddEdge(StageExport, StageTiles)
	e.graph = g
}

func (e *Engine) tilesDir() string {
	if e.cfg.TilesDir != "" {
		return e.cfg.TilesDir
	}
	return filepath.Join(e.cfg.OutputPath, "tiles")
}

// runPreflight validates inputs before any external tool is launched:
// the image folder must contain at least one image of the configured
// type, the marker file (when set) must parse and validate, and the
// output directory must be creatable.
func (e *Engine) runPreflight(ctx context.Context) error {
	n, err := countImages(e.cfg.ImageFolder, e.cfg.ImageType)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no %s images found in %s", e.cfg.ImageType, e.cfg.ImageFolder)
	}
	e.logger.Info("preflight: images found", "count", n, "folder", e.cfg.ImageFolder)

	if e.cfg.MarkerFile != "" {
		bars, err := markers.Load(e.cfg.MarkerFile)
		if err != nil {
			return fmt.Errorf("marker file %s: %w", e.cfg.MarkerFile, err)
		}
		if err := markers.ValidateSet(bars); err != nil {
			return fmt.Errorf("marker file %s: %w", e.cfg.MarkerFile, err)
		}
		e.logger.Info("preflight: scale bars validated", "count", len(bars))
	}

	if err := os.MkdirAll(e.cfg.OutputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output path: %w", err)
	}
	return nil
}

func (e *Engine) runProcess(ctx context.Context) error {
	return e.runInvocation(ctx, e.cfg.invocation(false))
}

func (e *Engine) runExport(ctx context.Context) error {
	if err := e.runInvocation(ctx, e.cfg.invocation(true)); err != nil {
		return err
	}
	for _, artifact := range []string{e.PointCloudFile(), e.ReportFile()} {
		if _, err := os.Stat(artifact); err != nil {
			e.logger.Warn("expected artifact missing after export", "path", artifact)
		}
	}
	return nil
}

func (e *Engine) runInvocation(ctx context.Context, inv metashape.Invocation) error {
	binary, args := inv.Command()
	e.logger.Info("running photogrammetry application", "command", inv.String())
	if err := e.run.RunStreaming(ctx, binary, args, e.cfg.Stdout, e.cfg.Stderr); err != nil {
		return fmt.Errorf("photogrammetry application failed: %w", err)
	}
	return nil
}

func (e *Engine) runTiles(ctx context.Context) error {
	input := e.PointCloudFile()
	if err := tiles.Convert(ctx, e.run, e.cfg.TilesTool, input, e.tilesDir(), true); err != nil {
		return fmt.Errorf("tile conversion failed: %w", err)
	}
	e.logger.Info("tileset written", "dir", e.tilesDir())
	return nil
}

// countImages counts files under dir with the given extension, walking
// subdirectories so images sorted into per-flight folders are found.
func countImages(dir, ext string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read image folder: %w", err)
	}
	return n, nil
}
