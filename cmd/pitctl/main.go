package main

import (
	"os"

	"github.com/snowpitlab/pitctl/internal/cli"
)

// Build-time variables set via -ldflags.
var (
	version   = "0.1.0"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildDate = buildDate
	cli.GitCommit = gitCommit

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
