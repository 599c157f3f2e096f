package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/archive"
	"github.com/snowpitlab/pitctl/internal/metashape"
)

// ArchiveOptions holds options for the archive command.
type ArchiveOptions struct {
	Bucket string
	Prefix string
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand() *cobra.Command {
	opts := &ArchiveOptions{}

	cmd := &cobra.Command{
		Use:   "archive [file]...",
		Short: "Upload pipeline artifacts to blob storage",
		Long: `Copy artifacts to the configured bucket for long-term storage.

Without arguments the project artifacts are uploaded: the project file, the
exported point cloud, and the processing report. Additional files can be
given explicitly. The bucket is any URL gocloud understands, for example
s3://snowpit-archive or file:///mnt/archive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "Destination bucket URL (overrides config)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Key prefix inside the bucket (default: the project name)")
	return cmd
}

func runArchive(cmd *cobra.Command, opts *ArchiveOptions, args []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg

	ac := cfg.GetArchive()
	bucket := opts.Bucket
	if bucket == "" {
		bucket = ac.Bucket
	}
	if bucket == "" {
		return fmt.Errorf("no bucket configured: set archive.bucket in pitctl.yaml or pass --bucket")
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = ac.Prefix
	}
	if prefix == "" {
		prefix = cfg.ProjectName
	}
	if prefix == "" {
		return fmt.Errorf("no prefix available: set project_name or pass --prefix")
	}

	paths := args
	if len(paths) == 0 {
		if err := cfg.Validate(); err != nil {
			return err
		}
		for _, ext := range []string{metashape.ProjectExt, metashape.PointCloudExt, metashape.ReportExt} {
			candidate := filepath.Join(cfg.OutputPath, cfg.ProjectName+ext)
			if _, err := os.Stat(candidate); err == nil {
				paths = append(paths, candidate)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no artifacts found under %s, run the pipeline first or name files explicitly", cfg.OutputPath)
		}
	}

	store := archive.NewStore(bucket, cmdCtx.Logger)
	if err := store.Archive(cmd.Context(), prefix, paths); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.JSONWanted() {
		return r.JSON(struct {
			Bucket string   `json:"bucket"`
			Prefix string   `json:"prefix"`
			Files  []string `json:"files"`
		}{bucket, prefix, paths})
	}
	r.Success("%d files archived to %s under %s/", len(paths), bucket, prefix)
	return nil
}
