// Package config loads gircheck's own settings (not the gir manifest)
// from defaults, an optional TOML file, GIRCHECK_* environment variables
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jward/gircheck/internal/checks"
	"github.com/jward/gircheck/internal/manifest"
	"github.com/jward/gircheck/internal/report"
	"github.com/jward/gircheck/internal/scan"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is looked up in LoadOptions.Dir when no file is given.
const FileName = ".gircheck.toml"

// EnvPrefix prefixes environment overrides, e.g. GIRCHECK_GIR_FILE.
const EnvPrefix = "GIRCHECK"

// Settings is the resolved tool configuration.
type Settings struct {
	GirFile         string `mapstructure:"gir_file"`
	Extractor       string `mapstructure:"extractor"`
	Script          string `mapstructure:"script"`
	ContinueOnError bool   `mapstructure:"continue_on_error"`
	Parallel        int    `mapstructure:"parallel"`
	DB              string `mapstructure:"db"`
	Color           string `mapstructure:"color"`
	Verbose         bool   `mapstructure:"verbose"`

	License LicenseSettings `mapstructure:"license"`
	Indent  IndentSettings  `mapstructure:"indent"`
	Checks  CheckSettings   `mapstructure:"checks"`
}

type LicenseSettings struct {
	Header string `mapstructure:"header"`
}

type IndentSettings struct {
	Pattern string `mapstructure:"pattern"`
}

// CheckSettings enables or disables each check.
type CheckSettings struct {
	ManualTraits bool `mapstructure:"manual_traits"`
	License      bool `mapstructure:"license"`
	Indent       bool `mapstructure:"indent"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Settings {
	return &Settings{
		GirFile:   manifest.DefaultFileName,
		Extractor: scan.KindHeuristic,
		Parallel:  1,
		Color:     string(report.ColorAuto),
		License:   LicenseSettings{Header: checks.DefaultLicenseHeader},
		Indent:    IndentSettings{Pattern: checks.DefaultIndentPattern},
		Checks:    CheckSettings{ManualTraits: true, License: true, Indent: true},
	}
}

// FlagKeys maps command-line flag names to settings keys.
var FlagKeys = map[string]string{
	"gir-file":          "gir_file",
	"extractor":         "extractor",
	"script":            "script",
	"continue-on-error": "continue_on_error",
	"parallel":          "parallel",
	"db":                "db",
	"color":             "color",
	"verbose":           "verbose",
	"license-header":    "license.header",
	"indent-pattern":    "indent.pattern",
}

// LoadOptions controls where settings come from.
type LoadOptions struct {
	// File is an explicit settings file; it must exist.
	File string

	// Dir is searched for FileName when File is empty. Defaults to ".".
	Dir string

	// Flags, when set, are bound through FlagKeys. Only flags the user
	// actually set override the other sources.
	Flags *pflag.FlagSet
}

// Load resolves the settings and returns them with the path of the file
// that was read, if any.
func Load(opts LoadOptions) (*Settings, string, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("gir_file", d.GirFile)
	v.SetDefault("extractor", d.Extractor)
	v.SetDefault("script", d.Script)
	v.SetDefault("continue_on_error", d.ContinueOnError)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("db", d.DB)
	v.SetDefault("color", d.Color)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("license.header", d.License.Header)
	v.SetDefault("indent.pattern", d.Indent.Pattern)
	v.SetDefault("checks.manual_traits", d.Checks.ManualTraits)
	v.SetDefault("checks.license", d.Checks.License)
	v.SetDefault("checks.indent", d.Checks.Indent)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if opts.Flags != nil {
		for flag, key := range FlagKeys {
			f := opts.Flags.Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, "", fmt.Errorf("config: bind --%s: %w", flag, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, "", err
	}
	return &s, path, nil
}

func resolveFile(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config: settings file: %w", err)
		}
		return opts.File, nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("config: settings file: %w", err)
	}
	return "", nil
}

// Validate rejects settings no check could run with.
func (s *Settings) Validate() error {
	var errs []error
	if s.GirFile == "" {
		errs = append(errs, errors.New("gir_file must not be empty"))
	}
	switch s.Extractor {
	case scan.KindHeuristic, scan.KindTreeSitter, scan.KindScript:
	default:
		errs = append(errs, fmt.Errorf("extractor %q is not one of %s, %s, %s",
			s.Extractor, scan.KindHeuristic, scan.KindTreeSitter, scan.KindScript))
	}
	if s.Script != "" && s.Extractor != scan.KindScript {
		errs = append(errs, fmt.Errorf("script is set but extractor is %q", s.Extractor))
	}
	if s.Parallel < 1 {
		errs = append(errs, fmt.Errorf("parallel must be at least 1, got %d", s.Parallel))
	}
	if _, err := report.ParseColor(s.Color); err != nil {
		errs = append(errs, err)
	}
	if s.Checks.Indent && !doublestar.ValidatePattern(s.Indent.Pattern) {
		errs = append(errs, fmt.Errorf("indent.pattern %q is not a valid glob", s.Indent.Pattern))
	}
	if s.Checks.License && s.License.Header == "" {
		errs = append(errs, errors.New("license.header must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid settings: %w", errors.Join(errs...))
	}
	return nil
}
