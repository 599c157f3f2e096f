// Package config provides configuration management for the pitctl CLI.
//
// Configuration is layered: defaults, then pitctl.yaml, then PITCTL_*
// environment variables, then command-line flags.
package config

import (
	"github.com/snowpitlab/pitctl/internal/batch"
	"github.com/snowpitlab/pitctl/internal/exif"
	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/tiles"
)

// MetashapeConfig holds settings for the external photogrammetry
// application.
type MetashapeConfig struct {
	Binary    string `koanf:"binary"`
	Script    string `koanf:"script"`
	Offscreen bool   `koanf:"offscreen"`
}

// ExifConfig holds settings for image metadata scanning and repair.
type ExifConfig struct {
	Tool         string   `koanf:"tool"`
	RequiredTags []string `koanf:"required_tags"`
	Workers      int      `koanf:"workers"`
}

// TilesConfig holds settings for point cloud tiling and the tileset
// preview server.
type TilesConfig struct {
	Tool string `koanf:"tool"`
	Dir  string `koanf:"dir"`
	Port int    `koanf:"port"`
	CORS bool   `koanf:"cors"`
}

// BatchConfig holds cluster submission settings.
type BatchConfig struct {
	Account   string `koanf:"account"`
	Partition string `koanf:"partition"`
	TimeLimit string `koanf:"time_limit"`
	NTasks    int    `koanf:"ntasks"`
	Memory    string `koanf:"memory"`
	NodeList  string `koanf:"node_list"`
	GPUs      int    `koanf:"gpus"`
	Runtime   string `koanf:"runtime"`
	Container string `koanf:"container"`
	LogFile   string `koanf:"log_file"`
}

// ArchiveConfig holds blob storage settings for artifact archival.
type ArchiveConfig struct {
	Bucket string `koanf:"bucket"`
	Prefix string `koanf:"prefix"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectName  string `koanf:"project_name"`
	ImageFolder  string `koanf:"image_folder"`
	OutputPath   string `koanf:"output_path"`
	ImageType    string `koanf:"image_type"`
	MarkerFile   string `koanf:"marker_file"`
	Quality      int    `koanf:"quality"`
	StatePath    string `koanf:"state_path"`
	Environment  string `koanf:"environment"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Metashape *MetashapeConfig `koanf:"metashape"`
	Exif      *ExifConfig      `koanf:"exif"`
	Tiles     *TilesConfig     `koanf:"tiles"`
	Batch     *BatchConfig     `koanf:"batch"`
	Archive   *ArchiveConfig   `koanf:"archive"`

	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory containing the config file (or the
	// working directory when none was found). Set by the loader.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	ImageFolder string         `koanf:"image_folder"`
	OutputPath  string         `koanf:"output_path"`
	StatePath   string         `koanf:"state_path"`
	Batch       *BatchConfig   `koanf:"batch"`
	Archive     *ArchiveConfig `koanf:"archive"`
}

// Default configuration values.
const (
	DefaultImageType = metashape.DefaultImageType
	DefaultQuality   = int(metashape.QualityHigh)
	DefaultStateFile = ".pitctl/state.db"
	DefaultEnv       = "local"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=json
	DefaultTilesPort = 8080
)

// GetMetashape returns the photogrammetry settings with defaults applied.
func (c *Config) GetMetashape() MetashapeConfig {
	m := MetashapeConfig{
		Binary:    metashape.DefaultBinary,
		Script:    metashape.DefaultScript,
		Offscreen: true,
	}
	if c.Metashape == nil {
		return m
	}
	if c.Metashape.Binary != "" {
		m.Binary = c.Metashape.Binary
	}
	if c.Metashape.Script != "" {
		m.Script = c.Metashape.Script
	}
	m.Offscreen = c.Metashape.Offscreen
	return m
}

// GetExif returns the metadata settings with defaults applied.
func (c *Config) GetExif() ExifConfig {
	e := ExifConfig{Tool: exif.DefaultTool}
	if c.Exif == nil {
		return e
	}
	if c.Exif.Tool != "" {
		e.Tool = c.Exif.Tool
	}
	e.RequiredTags = c.Exif.RequiredTags
	e.Workers = c.Exif.Workers
	return e
}

// GetTiles returns the tiling settings with defaults applied.
func (c *Config) GetTiles() TilesConfig {
	t := TilesConfig{Tool: tiles.DefaultTool, Port: DefaultTilesPort, CORS: true}
	if c.Tiles == nil {
		return t
	}
	if c.Tiles.Tool != "" {
		t.Tool = c.Tiles.Tool
	}
	if c.Tiles.Dir != "" {
		t.Dir = c.Tiles.Dir
	}
	if c.Tiles.Port != 0 {
		t.Port = c.Tiles.Port
	}
	t.CORS = c.Tiles.CORS
	return t
}

// GetBatch returns the cluster settings with defaults applied.
func (c *Config) GetBatch() BatchConfig {
	b := BatchConfig{Runtime: batch.DefaultContainerRuntime, NTasks: 1}
	if c.Batch == nil {
		return b
	}
	out := *c.Batch
	if out.Runtime == "" {
		out.Runtime = b.Runtime
	}
	if out.NTasks == 0 {
		out.NTasks = b.NTasks
	}
	return out
}

// GetArchive returns the archive settings, or the zero value when
// archival is not configured.
func (c *Config) GetArchive() ArchiveConfig {
	if c.Archive == nil {
		return ArchiveConfig{}
	}
	return *c.Archive
}
