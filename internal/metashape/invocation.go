// Package metashape composes the headless invocation of the external
// photogrammetry application. The application itself owns all of the real
// computation; this package only builds the argument list that forwards
// project settings into its embedded processing script.
package metashape

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// File extensions of the artifacts produced by the processing script.
const (
	ProjectExt    = ".psx"
	PointCloudExt = ".laz"
	ReportExt     = ".pdf"
)

// Defaults for the external application.
const (
	DefaultBinary    = "metashape.sh"
	DefaultScript    = "process-images.py"
	DefaultImageType = ".jpg"
)

// Invocation describes one headless run of the photogrammetry application.
type Invocation struct {
	// Binary is the application launcher (metashape.sh, Metashape.exe, ...).
	Binary string
	// Script is the processing script handed to the -r switch.
	Script string
	// Offscreen adds "-platform offscreen" for display-less hosts.
	Offscreen bool

	// Arguments forwarded into the processing script.
	ProjectName string
	OutputPath  string
	ImageFolder string
	ImageType   string
	MarkerFile  string
	Quality     Quality
	// Export asks the script to export the point cloud and report instead
	// of building the project.
	Export bool
}

// Args returns the full argument list, excluding the binary itself.
func (inv Invocation) Args() []string {
	var args []string
	if inv.Offscreen {
		args = append(args, "-platform", "offscreen")
	}

	script := inv.Script
	if script == "" {
		script = DefaultScript
	}
	args = append(args, "-r", script)

	args = append(args,
		"--project-name", inv.ProjectName,
		"--output-path", inv.OutputPath,
		"--image-folder", inv.ImageFolder,
	)

	if inv.ImageType != "" {
		args = append(args, "--image-type", inv.ImageType)
	}
	if inv.MarkerFile != "" {
		args = append(args, "--marker-file", inv.MarkerFile)
	}
	if inv.Quality != 0 {
		args = append(args, "--dense-cloud-quality", strconv.Itoa(int(inv.Quality)))
	}
	if inv.Export {
		args = append(args, "--export")
	}

	return args
}

// Command returns the binary and argument list ready for execution.
func (inv Invocation) Command() (string, []string) {
	binary := inv.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	return binary, inv.Args()
}

// String returns the invocation as a shell-style command line.
func (inv Invocation) String() string {
	binary, args := inv.Command()
	return strings.Join(append([]string{binary}, args...), " ")
}

// Validate checks the fields required for any invocation.
func (inv Invocation) Validate() error {
	if inv.ProjectName == "" {
		return fmt.Errorf("project name is required")
	}
	if inv.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if inv.ImageFolder == "" {
		return fmt.Errorf("image folder is required")
	}
	if inv.Quality != 0 {
		if _, err := ParseQuality(int(inv.Quality)); err != nil {
			return err
		}
	}
	return nil
}

// ProjectFile returns the path of the application project file.
func (inv Invocation) ProjectFile() string {
	return filepath.Join(inv.OutputPath, inv.ProjectName+ProjectExt)
}

// PointCloudFile returns the path of the exported point cloud.
func (inv Invocation) PointCloudFile() string {
	return filepath.Join(inv.OutputPath, inv.ProjectName+PointCloudExt)
}

// ReportFile returns the path of the exported processing report.
func (inv Invocation) ReportFile() string {
	return filepath.Join(inv.OutputPath, inv.ProjectName+ReportExt)
}
