package config

import (
	"fmt"
	"os"

	"github.com/snowpitlab/pitctl/internal/metashape"
)

// Validate checks fields every pipeline command depends on. Directory
// existence is checked separately so help-style commands work without a
// populated project.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is required (set it in pitctl.yaml or pass --project-name)")
	}
	if c.ImageFolder == "" {
		return fmt.Errorf("image_folder is required (set it in pitctl.yaml or pass --image-folder)")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is required (set it in pitctl.yaml or pass --output-path)")
	}
	if _, err := metashape.ParseQuality(c.Quality); err != nil {
		return err
	}
	return nil
}

// ValidateDirectories checks that the image folder exists.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ImageFolder); os.IsNotExist(err) {
		return fmt.Errorf("image folder does not exist: %s\nHint: create the directory or use --image-folder to specify a different path", c.ImageFolder)
	}
	return nil
}
