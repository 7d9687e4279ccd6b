package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/kiln/internal/suggest"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatText  = "text"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// addFormatFlag registers --format/-f restricted to formats.
func addFormatFlag(cmd *cobra.Command, dst *string, formats ...string) {
	cmd.Flags().StringVarP(dst, "format", "f", formats[0],
		fmt.Sprintf("output format (%s)", strings.Join(formats, "|")))
	addValidation(cmd.Flags().Lookup("format"), oneOf(formats...))
}

// oneOf accepts exactly the given values and suggests the closest one
// otherwise.
func oneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, ok := range values {
			if v == ok {
				return nil
			}
		}
		if best, ok := suggest.Closest(v, values); ok {
			return fmt.Errorf("invalid value %q, did you mean %q?", v, best)
		}
		return fmt.Errorf("invalid value %q, must be one of: %s", v, strings.Join(values, ", "))
	}
}

// addValidation makes flag reject values that validator refuses at parse
// time.
func addValidation(flag *pflag.Flag, validator func(string) error) {
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// writeFormatted encodes v as json or yaml, or calls table for the
// human-readable formats.
func writeFormatted(w io.Writer, format string, v interface{}, table func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(w)
	}
}
