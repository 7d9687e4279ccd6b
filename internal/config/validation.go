package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// ValidationError is one problem with a configuration value.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err joins the errors, or returns nil.
func (vr *ValidationResult) Err() error {
	errs := make([]error, len(vr.Errors))
	for i := range vr.Errors {
		errs[i] = &vr.Errors[i]
	}
	return errors.Join(errs...)
}

// String lists every issue with its suggestions.
func (vr *ValidationResult) String() string {
	var builder strings.Builder
	write := func(kind string, issues []ValidationError) {
		for _, issue := range issues {
			fmt.Fprintf(&builder, "%s: %s: %s\n", kind, issue.Field, issue.Message)
			for _, suggestion := range issue.Suggestions {
				fmt.Fprintf(&builder, "  help: %s\n", suggestion)
			}
		}
	}
	write("error", vr.Errors)
	write("warning", vr.Warnings)
	return builder.String()
}

func (vr *ValidationResult) errorf(field string, value interface{}, suggestions []string, format string, args ...interface{}) {
	vr.Errors = append(vr.Errors, ValidationError{
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf(format, args...),
		Suggestions: suggestions,
	})
}

func (vr *ValidationResult) warnf(field string, value interface{}, suggestions []string, format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, ValidationError{
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf(format, args...),
		Suggestions: suggestions,
	})
}

// Validate checks every section of cfg.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}
	validateComponents(&cfg.Components, result)
	validateBuild(&cfg.Build, result)
	validateDevelopment(&cfg.Development, result)
	validateServer(&cfg.Server, result)
	return result
}

func validateComponents(c *ComponentsConfig, result *ValidationResult) {
	for _, path := range c.ScanPaths {
		if err := validatePath(path); err != nil {
			result.errorf("components.scan_paths", path,
				[]string{"Use paths relative to the project root, such as ./ui"},
				"invalid scan path %q: %v", path, err)
		}
	}
	for _, pattern := range c.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.errorf("components.exclude_patterns", pattern,
				[]string{"Patterns use filepath.Match syntax, such as *_old.kiln"},
				"invalid pattern %q: %v", pattern, err)
		}
	}
}

func validateBuild(b *BuildConfig, result *ValidationResult) {
	if b.CacheDir != "" {
		clean := filepath.Clean(b.CacheDir)
		switch {
		case filepath.IsAbs(clean):
			result.errorf("build.cache_dir", b.CacheDir,
				[]string{"Use a directory inside the project, such as .kiln/cache"},
				"cache_dir must be relative")
		case hasTraversal(clean):
			result.errorf("build.cache_dir", b.CacheDir, nil,
				"cache_dir contains path traversal")
		}
	}

	if b.Workers < 0 {
		result.errorf("build.workers", b.Workers,
			[]string{"Use 0 for one worker per CPU"},
			"workers must not be negative")
	} else if b.Workers > 4*runtime.NumCPU() {
		result.warnf("build.workers", b.Workers, nil,
			"%d workers is more than four per CPU", b.Workers)
	}

	suffix := b.OutputSuffix
	switch {
	case !strings.HasSuffix(suffix, ".go") || len(suffix) <= len(".go"):
		result.errorf("build.output_suffix", suffix,
			[]string{"The default is _kiln.go"},
			"output_suffix must end in .go and name more than the extension")
	case strings.HasSuffix(suffix, "_test.go"):
		result.errorf("build.output_suffix", suffix, nil,
			"output_suffix must not produce test files")
	case strings.ContainsAny(suffix, `/\`):
		result.errorf("build.output_suffix", suffix, nil,
			"output_suffix must not contain a path separator")
	}
}

func validateDevelopment(d *DevelopmentConfig, result *ValidationResult) {
	switch {
	case d.WatchDebounce < 0:
		result.errorf("development.watch_debounce", d.WatchDebounce, nil,
			"watch_debounce must not be negative")
	case d.WatchDebounce > 5*time.Second:
		result.warnf("development.watch_debounce", d.WatchDebounce,
			[]string{"Rebuilds wait this long after the last change; 100ms is typical"},
			"watch_debounce of %s delays every rebuild", d.WatchDebounce)
	}
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if s.Port < 0 || s.Port > 65535 {
		result.errorf("server.port", s.Port,
			[]string{"Use a port between 1024 and 65535", "Port 0 lets the system pick one"},
			"port %d is not in valid range 0-65535", s.Port)
	} else if s.Port > 0 && s.Port < 1024 {
		result.warnf("server.port", s.Port,
			[]string{"Consider using a port above 1024 for development"},
			"port below 1024 requires elevated privileges")
	}

	if s.Host != "" {
		if err := validateHostname(s.Host); err != nil {
			result.errorf("server.host", s.Host,
				[]string{"Use 'localhost' for local development", "Use '0.0.0.0' to bind to all interfaces"},
				"%v", err)
		}
	}

	if s.Static != "" {
		if err := validatePath(s.Static); err != nil {
			result.errorf("server.static", s.Static, nil, "invalid static directory: %v", err)
		}
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname %q", host)
	}
	return nil
}

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}

func validatePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	clean := filepath.Clean(path)
	if hasTraversal(clean) {
		return errors.New("path contains traversal")
	}
	for _, char := range dangerousChars {
		if strings.Contains(clean, char) {
			return fmt.Errorf("path contains dangerous character %s", char)
		}
	}
	return nil
}

func hasTraversal(clean string) bool {
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
