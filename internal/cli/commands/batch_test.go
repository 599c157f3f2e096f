package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowpitlab/pitctl/internal/cli/config"
)

func batchTestConfig() *config.Config {
	return &config.Config{
		ProjectName: "pit-2026-02",
		ImageFolder: "/data/images",
		OutputPath:  "/data/output",
		ImageType:   ".jpg",
		MarkerFile:  "/data/markers.csv",
		Quality:     2,
		Batch: &config.BatchConfig{
			Account:   "snowlab",
			Partition: "gpu",
			TimeLimit: "08:00:00",
			Memory:    "64G",
			GPUs:      1,
			Container: "/containers/metashape.sif",
		},
	}
}

func TestBuildScript(t *testing.T) {
	script, err := buildScript(batchTestConfig(), true)
	require.NoError(t, err)

	assert.Equal(t, "pit-2026-02", script.JobName)
	assert.Equal(t, "snowlab", script.Account)
	assert.Equal(t, 1, script.GPUs)

	content, err := script.Render()
	require.NoError(t, err)

	assert.Contains(t, content, "#SBATCH --job-name=pit-2026-02")
	assert.Contains(t, content, "#SBATCH --account=snowlab")
	assert.Contains(t, content, "#SBATCH --partition=gpu")
	assert.Contains(t, content, "singularity exec --nv /containers/metashape.sif")
	assert.Contains(t, content, "metashape.sh -platform offscreen -r process-images.py")
	assert.Contains(t, content, "--project-name pit-2026-02")
	assert.Contains(t, content, "--export")
}

// The processing script exports instead of building when given --export,
// so the job must run the build invocation first and export second.
func TestBuildScript_BuildsBeforeExport(t *testing.T) {
	script, err := buildScript(batchTestConfig(), true)
	require.NoError(t, err)

	require.Len(t, script.Commands, 2)
	build := strings.Join(script.Commands[0], " ")
	export := strings.Join(script.Commands[1], " ")

	assert.NotContains(t, build, "--export")
	assert.Contains(t, build, "--dense-cloud-quality 2")
	assert.Contains(t, export, "--export")

	content, err := script.Render()
	require.NoError(t, err)
	buildIdx := strings.Index(content, build)
	exportIdx := strings.Index(content, export)
	require.GreaterOrEqual(t, buildIdx, 0)
	require.GreaterOrEqual(t, exportIdx, 0)
	assert.Less(t, buildIdx, exportIdx, "build invocation must precede export:\n%s", content)
}

func TestBuildScript_NoExport(t *testing.T) {
	script, err := buildScript(batchTestConfig(), false)
	require.NoError(t, err)

	require.Len(t, script.Commands, 1)
	assert.False(t, strings.Contains(strings.Join(script.Commands[0], " "), "--export"))
}

func TestBuildScript_InvalidQuality(t *testing.T) {
	cfg := batchTestConfig()
	cfg.Quality = 3
	_, err := buildScript(cfg, true)
	assert.Error(t, err)
}
