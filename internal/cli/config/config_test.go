package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "pitctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultImageType, cfg.ImageType)
	assert.Equal(t, DefaultQuality, cfg.Quality)
	assert.Equal(t, DefaultEnv, cfg.Environment)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
	assert.True(t, cfg.GetMetashape().Offscreen)
	assert.Equal(t, DefaultTilesPort, cfg.GetTiles().Port)
	assert.True(t, cfg.GetTiles().CORS)
}

func TestLoadConfig_FromFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project_name: pit-2026-02
image_folder: images
output_path: out
quality: 1
marker_file: markers.csv
metashape:
  binary: /opt/metashape/metashape.sh
batch:
  account: snowlab
  partition: gpu
  gpus: 1
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "pit-2026-02", cfg.ProjectName)
	assert.Equal(t, 1, cfg.Quality)
	assert.Equal(t, dir, cfg.ProjectRoot)

	// relative paths resolve against the config file's directory
	assert.Equal(t, filepath.Join(dir, "images"), cfg.ImageFolder)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputPath)
	assert.Equal(t, filepath.Join(dir, "markers.csv"), cfg.MarkerFile)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)

	assert.Equal(t, "/opt/metashape/metashape.sh", cfg.GetMetashape().Binary)
	assert.Equal(t, "snowlab", cfg.GetBatch().Account)
	assert.Equal(t, 1, cfg.GetBatch().GPUs)
	assert.Equal(t, "singularity", cfg.GetBatch().Runtime)
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, "project_name: nested\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "nested", cfg.ProjectName)
	// macOS tempdirs resolve through symlinks, compare by config file
	assert.Equal(t, "pitctl.yaml", filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_EnvVars(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("PITCTL_PROJECT_NAME", "from-env")
	t.Setenv("PITCTL_ENVIRONMENT", "hpc")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProjectName)
	assert.Equal(t, "hpc", cfg.Environment)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, "project_name: from-file\nquality: 4\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-name", "", "")
	flags.Int("quality", 0, "")
	flags.String("env", "", "")
	require.NoError(t, flags.Parse([]string{"--project-name=from-flag", "--quality=2", "--env=hpc"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.ProjectName)
	assert.Equal(t, 2, cfg.Quality)
	assert.Equal(t, "hpc", cfg.Environment)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project_name: pit
environment: hpc
output_path: out
batch:
  account: snowlab
environments:
  hpc:
    output_path: /scratch/pit/out
    batch:
      partition: gpu
      gpus: 2
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/scratch/pit/out", cfg.OutputPath)
	assert.Equal(t, "snowlab", cfg.GetBatch().Account)
	assert.Equal(t, "gpu", cfg.GetBatch().Partition)
	assert.Equal(t, 2, cfg.GetBatch().GPUs)
}

func TestLoadConfig_ArchiveEnvExpansion(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project_name: pit
archive:
  bucket: s3://${PIT_BUCKET}?region=eu-north-1
  prefix: pits
`)
	t.Setenv("PIT_BUCKET", "snowpit-archive")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3://snowpit-archive?region=eu-north-1", cfg.GetArchive().Bucket)
	assert.Equal(t, "pits", cfg.GetArchive().Prefix)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{ProjectName: "p", ImageFolder: "/imgs", OutputPath: "/out", Quality: 2}
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{ImageFolder: "/imgs", OutputPath: "/out", Quality: 2}).Validate())
	assert.Error(t, (&Config{ProjectName: "p", OutputPath: "/out", Quality: 2}).Validate())
	assert.Error(t, (&Config{ProjectName: "p", ImageFolder: "/imgs", Quality: 2}).Validate())
	assert.Error(t, (&Config{ProjectName: "p", ImageFolder: "/imgs", OutputPath: "/out", Quality: 3}).Validate())
}

func TestConfig_ValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ImageFolder: dir}
	assert.NoError(t, cfg.ValidateDirectories())

	cfg.ImageFolder = filepath.Join(dir, "missing")
	assert.Error(t, cfg.ValidateDirectories())
}
