package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/cli/config"
	"github.com/snowpitlab/pitctl/internal/markers"
	"github.com/snowpitlab/pitctl/internal/runner"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project setup and external tools",
		Long: `Verify that the project is ready to run.

Checks the configuration, the image folder, the marker file, and that the
external tools the pipeline shells out to are resolvable on PATH. The
cluster tools are reported but optional, since submission usually happens
from a login node rather than a workstation.`,
		RunE: runDoctor,
	}
}

// DoctorCheck is one verification result.
type DoctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks []DoctorCheck `json:"checks"`
	Ready  bool          `json:"ready"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg

	out := &DoctorOutput{Ready: true}
	add := func(name, status, detail string) {
		out.Checks = append(out.Checks, DoctorCheck{Name: name, Status: status, Detail: detail})
		if status == "fail" {
			out.Ready = false
		}
	}

	// Configuration
	if err := cfg.Validate(); err != nil {
		add("configuration", "fail", err.Error())
	} else {
		detail := "defaults"
		if file := config.GetConfigFileUsed(); file != "" {
			detail = file
		}
		add("configuration", "ok", detail)
	}

	// Image folder
	switch _, err := os.Stat(cfg.ImageFolder); {
	case cfg.ImageFolder == "":
		add("image folder", "fail", "image_folder is not set")
	case err != nil:
		add("image folder", "fail", fmt.Sprintf("%s does not exist", cfg.ImageFolder))
	default:
		add("image folder", "ok", cfg.ImageFolder)
	}

	// Marker file
	if cfg.MarkerFile == "" {
		add("marker file", "warn", "not configured, reconstruction will be unscaled")
	} else if bars, err := markers.Load(cfg.MarkerFile); err != nil {
		add("marker file", "fail", err.Error())
	} else if err := markers.ValidateSet(bars); err != nil {
		add("marker file", "fail", err.Error())
	} else {
		add("marker file", "ok", fmt.Sprintf("%d scale bars", len(bars)))
	}

	// External tools
	r := runner.ExecRunner{}
	checkTool := func(name, binary string, required bool) {
		path, err := r.LookPath(binary)
		switch {
		case err == nil:
			add(name, "ok", path)
		case required:
			add(name, "fail", binary+" not found on PATH")
		default:
			add(name, "warn", binary+" not found on PATH")
		}
	}
	checkTool("photogrammetry application", cfg.GetMetashape().Binary, true)
	checkTool("metadata editor", cfg.GetExif().Tool, false)
	checkTool("tiling tool", cfg.GetTiles().Tool, false)
	checkTool("cluster scheduler", "sbatch", false)
	checkTool("container runtime", cfg.GetBatch().Runtime, false)

	render := cmdCtx.Renderer
	if render.JSONWanted() {
		return render.JSON(out)
	}

	rows := make([][]string, 0, len(out.Checks))
	for _, check := range out.Checks {
		rows = append(rows, []string{check.Name, check.Status, check.Detail})
	}
	render.Table([]string{"CHECK", "STATUS", "DETAIL"}, rows)

	if !out.Ready {
		return fmt.Errorf("project is not ready, fix the failing checks above")
	}
	render.Success("project is ready")
	return nil
}
