// Package cmd is the kiln command line.
//
// Configuration is read from, highest priority first:
//
//  1. command-line flags (--workers, --port, ...)
//  2. KILN_<SECTION>_<KEY> environment variables, e.g. KILN_SERVER_PORT
//  3. the file named by --config, else KILN_CONFIG_FILE, else .kiln.yml
//  4. built-in defaults
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/diag"
	"github.com/conneroisu/kiln/internal/logging"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v         *viper.Viper
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string
	logOut    io.Closer

	cfg *config.Config
	log logging.Logger

	// bindings are the flag to config key pairs of each subcommand,
	// bound only for the command that runs.
	bindings map[*cobra.Command][]flagBinding
}

type flagBinding struct {
	flag, key string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{
		v:        viper.New(),
		log:      logging.Nop(),
		bindings: make(map[*cobra.Command][]flagBinding),
	}

	root := &cobra.Command{
		Use:   "kiln",
		Short: "Compile HTML templates embedded in Go into Go code",
		Long: `kiln compiles the html!{ ... } templates in .kiln files into plain Go.

Every .kiln file is a Go source file. kiln parses its templates, validates
their structure, scopes their stylesheets and writes <name>_kiln.go next to
it. The generated code streams escaped HTML with no template interpretation
at run time.

Quick Start:
  kiln generate            Compile every .kiln file under the scan paths
  kiln validate            Report diagnostics without writing anything
  kiln watch --serve       Recompile on change and reload the browser
  kiln list                List the components kiln knows about`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setupLogger(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return a.bindFlags(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.closeLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .kiln.yml, can also use KILN_CONFIG_FILE env var)")
	flags.StringVarP(&a.logLevel, "log-level", "l", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	addValidation(flags.Lookup("log-format"), oneOf("text", "json"))
	flags.StringVar(&a.logFile, "log-file", "", "also append JSON logs to this file")

	root.AddCommand(
		newGenerateCmd(a),
		newValidateCmd(a),
		newWatchCmd(a),
		newListCmd(a),
		newFmtCSSCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "kiln:", err)
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit status:
// 0 on success, 2 for configuration problems and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ke, ok := diag.GetKilnError(err); ok && ke.Type == diag.ErrorTypeConfig {
		return 2
	}
	return 1
}

func (a *app) setupLogger(w io.Writer) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	var log logging.Logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: a.logFormat,
		Output: w,
	})
	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return diag.NewIOError(diag.ErrCodeFileWrite, "open log file", err).WithLocation(a.logFile, 0, 0)
		}
		a.logOut = f
		log = logging.NewMultiLogger(log, logging.NewLogger(&logging.LoggerConfig{
			Level:  level,
			Format: "json",
			Output: f,
		}))
	}
	a.log = log.WithComponent("cli")
	return nil
}

func (a *app) closeLog() error {
	if a.logOut == nil {
		return nil
	}
	err := a.logOut.Close()
	a.logOut = nil
	return err
}

// config reads the configuration once. Commands that never need it, such
// as version, do not fail on a broken config file.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		a.log.Info(context.Background(), "using config file", "path", cfg.File)
	}
	a.cfg = cfg
	return cfg, nil
}

// bind ties a command flag to a config key so the flag overrides the file
// and environment when given. Several commands share a key, and viper keeps
// one flag per key, so the binding happens when cmd runs.
func (a *app) bind(cmd *cobra.Command, flag, key string) {
	if cmd.Flags().Lookup(flag) == nil {
		panic(fmt.Sprintf("binding unknown flag --%s to %s", flag, key))
	}
	a.bindings[cmd] = append(a.bindings[cmd], flagBinding{flag: flag, key: key})
}

func (a *app) bindFlags(cmd *cobra.Command) error {
	for _, b := range a.bindings[cmd] {
		if err := a.v.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return fmt.Errorf("binding --%s to %s: %w", b.flag, b.key, err)
		}
	}
	return nil
}

func workingDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("finding working directory: %w", err)
	}
	return wd, nil
}
