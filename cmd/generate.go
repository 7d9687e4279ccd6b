package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/build"
)

func newGenerateCmd(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:     "generate [paths...]",
		Aliases: []string{"build", "g"},
		Short:   "Compile .kiln files into Go",
		Long: `Compile every .kiln file under the scan paths and write <name>_kiln.go
next to each one. Paths given as arguments replace components.scan_paths.

Files with errors are not written; their diagnostics are printed with the
offending source line and the command exits non-zero.

Examples:
  kiln generate                  # Compile the configured scan paths
  kiln generate ./ui ./pages     # Compile two directories
  kiln generate --workers 1      # Compile on a single worker
  kiln build --warnings-as-errors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.builder(args, false, noCache)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			report.Render(cmd.ErrOrStderr())
			printSummary(cmd.ErrOrStderr(), report)
			return report.Err()
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "number of compile workers (0 for one per CPU)")
	cmd.Flags().Bool("warnings-as-errors", false, "fail files that have warnings")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore and do not persist the build cache")
	a.bind(cmd, "workers", "build.workers")
	a.bind(cmd, "warnings-as-errors", "build.warnings_as_errors")
	return cmd
}

// builder creates a builder for the working directory from the loaded
// configuration. Non-empty paths replace the configured scan paths.
func (a *app) builder(paths []string, noWrite, noCache bool) (*build.Builder, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	root, err := workingDir()
	if err != nil {
		return nil, err
	}

	scanPaths := cfg.Components.ScanPaths
	if len(paths) > 0 {
		scanPaths = paths
	}
	cacheDir := cfg.Build.CacheDir
	if noCache {
		cacheDir = ""
	}

	return build.New(build.Options{
		Root:             root,
		ScanPaths:        scanPaths,
		Exclude:          cfg.Components.ExcludePatterns,
		Workers:          cfg.Build.Workers,
		OutputSuffix:     cfg.Build.OutputSuffix,
		WarningsAsErrors: cfg.Build.WarningsAsErrors,
		CacheDir:         cacheDir,
		NoWrite:          noWrite,
		Logger:           a.log,
	})
}

func printSummary(w io.Writer, report *build.Report) {
	compiled, cached, failed := report.Counts()
	written := 0
	for _, f := range report.Files {
		if f.Written {
			written++
		}
	}
	fmt.Fprintf(w, "kiln: %d files (%d compiled, %d cached, %d failed, %d written), %d warnings in %s\n",
		len(report.Files), compiled, cached, failed, written,
		len(report.Diags.Warnings()), report.Duration.Round(time.Millisecond))
}
