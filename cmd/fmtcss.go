package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/css"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/scope"
)

func newFmtCSSCmd() *cobra.Command {
	var (
		scopeID string
		check   bool
		names   bool
	)

	cmd := &cobra.Command{
		Use:   "fmt-css [file]",
		Short: "Scope a stylesheet the way a template would",
		Long: `Read a stylesheet from a file or stdin and print it with every selector
scoped, as kiln does for a template's <style> sheet. Useful for seeing what
a selector turns into.

Without --scope the identifier is derived from the file name and template
index 0, matching the first template of a .kiln file with that name.

Examples:
  kiln fmt-css ui/card.css
  echo '.card { color: red; }' | kiln fmt-css --scope s1
  kiln fmt-css --check ui/card.css`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "stdin"
			var (
				src []byte
				err error
			)
			if len(args) == 1 {
				name = args[0]
				src, err = os.ReadFile(name)
			} else {
				src, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading stylesheet: %w", err)
			}

			if check {
				return checkCSS(cmd.OutOrStdout(), name, string(src))
			}

			id := scopeID
			if id == "" {
				id = scope.Hash(scope.Key{File: strings.TrimSuffix(name, ".css") + ".kiln"})
			}
			res, err := css.Scope(string(src), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if names {
				fmt.Fprintf(out, "/* scope: %s */\n", css.ScopeAttr(id))
				fmt.Fprintf(out, "/* classes: %s */\n", strings.Join(res.Classes, " "))
				fmt.Fprintf(out, "/* ids: %s */\n", strings.Join(res.IDs, " "))
			}
			_, err = io.WriteString(out, res.CSS)
			return err
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "scope identifier to use")
	cmd.Flags().BoolVar(&check, "check", false, "validate the sheet instead of scoping it")
	cmd.Flags().BoolVar(&names, "names", false, "list the scope, classes and ids before the sheet")
	return cmd
}

func checkCSS(w io.Writer, name, src string) error {
	sources := diag.NewSources()
	sources.Add(name, []byte(src))
	errs := 0
	for _, p := range css.Validate(src) {
		severity := "error"
		if p.Warning {
			severity = "warning"
		} else {
			errs++
		}
		pos := sources.Position(name, p.Offset)
		fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", name, pos.Line, pos.Column, severity, p.Message, p.Rule)
		if p.Help != "" {
			fmt.Fprintf(w, "    help: %s\n", p.Help)
		}
	}
	if errs > 0 {
		return errors.New("stylesheet has errors")
	}
	return nil
}
