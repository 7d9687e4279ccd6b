package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the kiln version, commit, build time, Go version and platform.

Examples:
  kiln version                 # One line
  kiln version --detailed      # Every field
  kiln version -f json         # Output as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			return writeFormatted(cmd.OutOrStdout(), format, info, func(w io.Writer) error {
				if !detailed {
					_, err := fmt.Fprintln(w, info.Short())
					return err
				}
				fmt.Fprintf(w, "Version:  %s\n", info.Version)
				fmt.Fprintf(w, "Commit:   %s\n", info.GitCommit)
				if !info.BuildTime.IsZero() {
					fmt.Fprintf(w, "Built:    %s\n", info.BuildTime.UTC().Format(time.RFC3339))
				}
				fmt.Fprintf(w, "Go:       %s\n", info.GoVersion)
				fmt.Fprintf(w, "Platform: %s\n", info.Platform)
				buildType := "development"
				if info.IsRelease() {
					buildType = "release"
				}
				_, err := fmt.Fprintf(w, "Build:    %s\n", buildType)
				return err
			})
		},
	}

	addFormatFlag(cmd, &format, formatText, formatJSON, formatYAML)
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show every build field")
	return cmd
}
