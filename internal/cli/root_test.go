package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowpitlab/pitctl/internal/cli/config"
	"github.com/snowpitlab/pitctl/internal/cli/testutil"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pitctl v")
}

func TestRootCmd_Plan(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, err := executeCommand(t, "plan")
	require.NoError(t, err)

	for _, stage := range []string{"preflight", "process", "export", "tiles"} {
		assert.Contains(t, out, stage)
	}
}

func TestRootCmd_PlanSelected(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, err := executeCommand(t, "plan", "--select", "export", "--downstream")
	require.NoError(t, err)

	assert.Contains(t, out, "export")
	assert.Contains(t, out, "tiles")
	assert.NotContains(t, out, "preflight")
}

func TestRootCmd_PlanUnknownStage(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	_, err := executeCommand(t, "plan", "--select", "deploy")
	assert.Error(t, err)
}

func TestRootCmd_MarkersCheck(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, err := executeCommand(t, "markers", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "2 scale bars")
}

func TestRootCmd_RunsEmpty(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, err := executeCommand(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestRootCmd_MissingProject(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := executeCommand(t, "plan")
	assert.Error(t, err)
}

func TestRootCmd_BatchScript(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, err := executeCommand(t,
		"batch", "script",
		"--project-name", "test-pit")
	// Batch needs time_limit and container, absent from the test project.
	if assert.Error(t, err) {
		assert.NotContains(t, out, "#SBATCH")
	}
}
