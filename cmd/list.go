package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/registry"
)

type componentOutput struct {
	Name     string       `json:"name" yaml:"name"`
	Package  string       `json:"package" yaml:"package"`
	File     string       `json:"file" yaml:"file"`
	Children bool         `json:"children" yaml:"children"`
	Props    []propOutput `json:"props,omitempty" yaml:"props,omitempty"`
}

type propOutput struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		format    string
		withProps bool
	)

	cmd := &cobra.Command{
		Use:     "list [paths...]",
		Aliases: []string{"ls"},
		Short:   "List the components declared with //kiln:component",
		Long: `List every component kiln finds under the scan paths.

Examples:
  kiln list                      # Table of components
  kiln list -p                   # Include props and their defaults
  kiln list -f yaml              # Output as YAML`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.builder(args, true, true)
			if err != nil {
				return err
			}
			defer b.Close()

			if _, err := b.Scan(cmd.Context()); err != nil {
				return err
			}

			components := b.Registry().All()
			out := make([]componentOutput, 0, len(components))
			for _, c := range components {
				out = append(out, describeComponent(b.Root(), c, withProps || format != formatTable))
			}
			return writeFormatted(cmd.OutOrStdout(), format, out, func(w io.Writer) error {
				return writeComponentTable(w, out, withProps)
			})
		},
	}

	addFormatFlag(cmd, &format, formatTable, formatJSON, formatYAML)
	cmd.Flags().BoolVarP(&withProps, "with-props", "p", false, "include component props")
	return cmd
}

func describeComponent(root string, c *registry.Component, withProps bool) componentOutput {
	file := c.FilePath
	if rel, err := filepath.Rel(root, file); err == nil {
		file = filepath.ToSlash(rel)
	}
	out := componentOutput{
		Name:     c.Name,
		Package:  c.Package,
		File:     file,
		Children: c.HasChildren(),
	}
	if withProps {
		for _, p := range c.Props {
			out.Props = append(out.Props, propOutput{Name: p.Param, Type: p.Type, Default: p.Default})
		}
	}
	return out
}

func writeComponentTable(w io.Writer, components []componentOutput, withProps bool) error {
	if len(components) == 0 {
		_, err := fmt.Fprintln(w, "No components found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "NAME\tPACKAGE\tFILE\tCHILDREN"
	if withProps {
		header += "\tPROPS"
	}
	fmt.Fprintln(tw, header)
	for _, c := range components {
		children := "no"
		if c.Children {
			children = "yes"
		}
		row := fmt.Sprintf("%s\t%s\t%s\t%s", c.Name, c.Package, c.File, children)
		if withProps {
			props := make([]string, len(c.Props))
			for i, p := range c.Props {
				props[i] = p.Name + " " + p.Type
				if p.Default != "" {
					props[i] += " = " + p.Default
				}
			}
			row += "\t" + strings.Join(props, ", ")
		}
		fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d components\n", len(components))
	return err
}
