// Package config loads kiln settings with viper from .kiln.yml, KILN_*
// environment variables and command-line flags.
//
// Precedence, highest first: flags bound by the CLI, KILN_<SECTION>_<KEY>
// environment variables, the config file, then the defaults below. The
// config file is the --config flag, else KILN_CONFIG_FILE, else .kiln.yml
// in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/diag"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KILN"
	// EnvConfigFile names a config file when --config is not given.
	EnvConfigFile = "KILN_CONFIG_FILE"
	// DefaultName is the config file looked up in the working directory.
	DefaultName = ".kiln"
)

type Config struct {
	Components  ComponentsConfig  `mapstructure:"components" yaml:"components" json:"components"`
	Build       BuildConfig       `mapstructure:"build" yaml:"build" json:"build"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-" json:"-"`
}

type ComponentsConfig struct {
	ScanPaths       []string `mapstructure:"scan_paths" yaml:"scan_paths" json:"scan_paths"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
}

type BuildConfig struct {
	CacheDir         string `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
	Workers          int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputSuffix     string `mapstructure:"output_suffix" yaml:"output_suffix" json:"output_suffix"`
	WarningsAsErrors bool   `mapstructure:"warnings_as_errors" yaml:"warnings_as_errors" json:"warnings_as_errors"`
}

type DevelopmentConfig struct {
	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce" json:"watch_debounce"`
	LiveReload    bool          `mapstructure:"live_reload" yaml:"live_reload" json:"live_reload"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	// Static is served at "/" by the dev server when set.
	Static string `mapstructure:"static" yaml:"static" json:"static"`
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("components.scan_paths", []string{"."})
	v.SetDefault("components.exclude_patterns", []string{})
	v.SetDefault("build.cache_dir", ".kiln/cache")
	v.SetDefault("build.workers", runtime.NumCPU())
	v.SetDefault("build.output_suffix", "_kiln.go")
	v.SetDefault("build.warnings_as_errors", false)
	v.SetDefault("development.watch_debounce", 100*time.Millisecond)
	v.SetDefault("development.live_reload", true)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7331)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.static", "")
}

// Init points v at the config file and environment. An explicit file that
// cannot be read is an error; a missing .kiln.yml is not.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	explicit := file != ""
	if !explicit {
		file = os.Getenv(EnvConfigFile)
		explicit = file != ""
	}
	if explicit {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		return diag.NewConfigError(diag.ErrCodeInvalidConfig,
			fmt.Sprintf("reading config file %s", file), err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, diag.NewConfigError(diag.ErrCodeInvalidConfig, "decoding configuration", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Build.Workers == 0 {
		cfg.Build.Workers = runtime.NumCPU()
	}
	if len(cfg.Components.ScanPaths) == 0 {
		cfg.Components.ScanPaths = []string{"."}
	}

	if result := Validate(&cfg); result.HasErrors() {
		err := diag.NewConfigError(diag.ErrCodeInvalidConfig, "invalid configuration", result.Err())
		if cfg.File != "" {
			err = err.WithLocation(cfg.File, 0, 0)
		}
		return nil, err
	}
	return &cfg, nil
}
