package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/state"
)

// fakeRunner records every command and simulates the external tools. When
// the photogrammetry application is invoked with --export it writes the
// expected point cloud artifact so the tiles stage has an input.
type fakeRunner struct {
	commands [][]string
	failOn   string
	makeAt   string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	return nil, nil, 0, f.record(name, args)
}

func (f *fakeRunner) RunStreaming(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	return f.record(name, args)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) record(name string, args []string) error {
	full := append([]string{name}, args...)
	f.commands = append(f.commands, full)
	if f.failOn != "" && name == f.failOn {
		return assert.AnError
	}
	if f.makeAt != "" && contains(args, "--export") {
		if err := os.WriteFile(f.makeAt, []byte("laz"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T, r *fakeRunner) Config {
	t.Helper()
	dir := t.TempDir()

	images := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(images, 0o755))
	for _, name := range []string{"a.jpg", "b.JPG", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(images, name), []byte("x"), 0o644))
	}

	markerFile := filepath.Join(dir, "markers.csv")
	require.NoError(t, os.WriteFile(markerFile, []byte("1,2,0.5\n3,4,1.0\n"), 0o644))

	output := filepath.Join(dir, "out")
	cfg := Config{
		ProjectName:     "pit-2026-02",
		OutputPath:      output,
		ImageFolder:     images,
		ImageType:       ".jpg",
		MarkerFile:      markerFile,
		Quality:         metashape.QualityHigh,
		MetashapeBinary: "metashape.sh",
		Offscreen:       true,
		TilesTool:       "py3dtiles",
		Environment:     "local",
		StatePath:       filepath.Join(dir, "state.db"),
		Runner:          r,
	}
	r.makeAt = filepath.Join(output, "pit-2026-02"+metashape.PointCloudExt)
	return cfg
}

func TestEngine_Plan(t *testing.T) {
	r := &fakeRunner{}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	order, err := e.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{StagePreflight, StageProcess, StageExport, StageTiles}, order)
}

func TestEngine_PlanSelected_Downstream(t *testing.T) {
	r := &fakeRunner{}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	order, err := e.PlanSelected([]string{StageProcess}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{StageProcess, StageExport, StageTiles}, order)

	order, err = e.PlanSelected([]string{StageExport}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{StageExport}, order)

	_, err = e.PlanSelected([]string{"deploy"}, false)
	assert.Error(t, err)
}

func TestEngine_Run_Success(t *testing.T) {
	r := &fakeRunner{}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, state.RunStatusCompleted, result.Run.Status)
	require.Len(t, result.Stages, 4)
	for _, s := range result.Stages {
		assert.Equal(t, state.StageStatusSuccess, s.Status, s.Stage)
	}

	// process, export, and tiles each launch one external command
	require.Len(t, r.commands, 3)
	assert.Equal(t, "metashape.sh", r.commands[0][0])
	assert.True(t, contains(r.commands[1], "--export"))
	assert.Equal(t, "py3dtiles", r.commands[2][0])

	// run history is persisted
	runs, err := e.Store().ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)

	stages, err := e.Store().ListStageRuns(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, stages, 4)
}

func TestEngine_Run_FailureSkipsDownstream(t *testing.T) {
	r := &fakeRunner{failOn: "metashape.sh"}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Equal(t, state.RunStatusFailed, result.Run.Status)
	assert.Contains(t, result.Run.Error, "stage process")

	require.Len(t, result.Stages, 4)
	assert.Equal(t, state.StageStatusSuccess, result.Stages[0].Status)
	assert.Equal(t, state.StageStatusFailed, result.Stages[1].Status)
	assert.Equal(t, state.StageStatusSkipped, result.Stages[2].Status)
	assert.Equal(t, state.StageStatusSkipped, result.Stages[3].Status)

	// nothing after the failing application invocation ran
	require.Len(t, r.commands, 1)
}

func TestEngine_Run_PreflightFailures(t *testing.T) {
	t.Run("empty image folder", func(t *testing.T) {
		r := &fakeRunner{}
		cfg := testConfig(t, r)
		cfg.ImageFolder = t.TempDir()
		e, err := New(cfg)
		require.NoError(t, err)
		defer e.Close()

		result, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Failed())
		assert.Equal(t, state.StageStatusFailed, result.Stages[0].Status)
		assert.Contains(t, result.Stages[0].Err.Error(), "no .jpg images")
		assert.Empty(t, r.commands)
	})

	t.Run("images in subdirectories", func(t *testing.T) {
		r := &fakeRunner{}
		cfg := testConfig(t, r)
		cfg.MarkerFile = ""

		images := filepath.Join(t.TempDir(), "images")
		nested := filepath.Join(images, "flight-1")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(nested, "c.jpg"), []byte("x"), 0o644))
		cfg.ImageFolder = images

		e, err := New(cfg)
		require.NoError(t, err)
		defer e.Close()

		result, err := e.RunSelected(context.Background(), []string{StagePreflight}, false)
		require.NoError(t, err)
		assert.False(t, result.Failed())
	})

	t.Run("bad marker file", func(t *testing.T) {
		r := &fakeRunner{}
		cfg := testConfig(t, r)
		cfg.MarkerFile = filepath.Join(t.TempDir(), "markers.csv")
		require.NoError(t, os.WriteFile(cfg.MarkerFile, []byte("1,1,0.5\n"), 0o644))
		e, err := New(cfg)
		require.NoError(t, err)
		defer e.Close()

		result, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Failed())
		assert.Equal(t, state.StageStatusFailed, result.Stages[0].Status)
	})
}

func TestEngine_RunSelected(t *testing.T) {
	r := &fakeRunner{}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	result, err := e.RunSelected(context.Background(), []string{StagePreflight}, false)
	require.NoError(t, err)
	assert.False(t, result.Failed())
	require.Len(t, result.Stages, 1)
	assert.Equal(t, StagePreflight, result.Stages[0].Stage)
	assert.Empty(t, r.commands)
}

func TestEngine_StageCommands(t *testing.T) {
	r := &fakeRunner{}
	e, err := New(testConfig(t, r))
	require.NoError(t, err)
	defer e.Close()

	process := e.stages[StageProcess].command
	assert.True(t, strings.HasPrefix(process, "metashape.sh -platform offscreen -r process-images.py"))
	assert.NotContains(t, process, "--export")
	assert.Contains(t, e.stages[StageExport].command, "--export")
	assert.True(t, strings.HasPrefix(e.stages[StageTiles].command, "py3dtiles convert"))
}

func TestEngine_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
