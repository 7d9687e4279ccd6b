package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/validate"
)

type diagnosticOutput struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column" yaml:"column"`
	Severity string `json:"severity" yaml:"severity"`
	Rule     string `json:"rule,omitempty" yaml:"rule,omitempty"`
	Summary  string `json:"summary" yaml:"summary"`
	Help     string `json:"help,omitempty" yaml:"help,omitempty"`
}

type ruleOutput struct {
	ID       string `json:"id" yaml:"id"`
	Severity string `json:"severity" yaml:"severity"`
	Doc      string `json:"doc" yaml:"doc"`
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		format string
		rules  bool
	)

	cmd := &cobra.Command{
		Use:     "validate [paths...]",
		Aliases: []string{"check"},
		Short:   "Report template diagnostics without writing files",
		Long: `Compile every .kiln file under the scan paths and report what kiln finds,
without writing any generated code. The configuration itself is checked
first.

Examples:
  kiln validate                  # Check the configured scan paths
  kiln validate ./ui -f json     # Machine-readable diagnostics
  kiln validate --rules          # List the template rules`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if rules {
				return writeRules(out, format)
			}

			cfg, err := a.config()
			if err != nil {
				return err
			}
			if format == formatText {
				if res := config.Validate(cfg); res.HasWarnings() {
					fmt.Fprint(cmd.ErrOrStderr(), res.String())
				}
			}

			b, err := a.builder(args, true, true)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			if format == formatText {
				report.Render(out)
				printSummary(cmd.ErrOrStderr(), report)
			} else if err := writeFormatted(out, format, diagnostics(b.Root(), report), nil); err != nil {
				return err
			}
			return report.Err()
		},
	}

	addFormatFlag(cmd, &format, formatText, formatJSON, formatYAML)
	cmd.Flags().BoolVar(&rules, "rules", false, "list the template rules and exit")
	cmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	a.bind(cmd, "warnings-as-errors", "build.warnings_as_errors")
	return cmd
}

func diagnostics(root string, report *build.Report) []diagnosticOutput {
	out := make([]diagnosticOutput, 0, len(report.Diags))
	for _, d := range report.Diags {
		pos := report.Sources.Position(d.File, d.Span.Start)
		file := d.File
		if rel, err := filepath.Rel(root, file); err == nil {
			file = filepath.ToSlash(rel)
		}
		out = append(out, diagnosticOutput{
			File:     file,
			Line:     pos.Line,
			Column:   pos.Column,
			Severity: d.Severity.String(),
			Rule:     d.Rule,
			Summary:  d.Summary,
			Help:     d.Help,
		})
	}
	return out
}

func writeRules(w io.Writer, format string) error {
	rules := make([]ruleOutput, len(validate.Rules))
	for i, r := range validate.Rules {
		rules[i] = ruleOutput{ID: r.ID, Severity: r.Severity.String(), Doc: r.Doc}
	}
	return writeFormatted(w, format, rules, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tSEVERITY\tDESCRIPTION")
		for _, r := range rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Severity, r.Doc)
		}
		return tw.Flush()
	})
}
