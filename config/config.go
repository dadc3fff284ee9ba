// Package config loads and validates the .algebras.config project file.
//
// The file is YAML. The languages list declares the locale set; entries are
// either a bare code ("fr") or a single-entry mapping of internal code to
// destination code ({uz: uz_Cyrl}). The first entry is the source locale
// unless source_language overrides it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the project root when no
// explicit path is given.
const DefaultFileName = ".algebras.config"

// Defaults for the translator driver knobs.
const (
	DefaultBatchSize          = 20
	DefaultMaxParallelBatches = 5
	DefaultXLFTargetState     = "translated"
)

// Environment variables recognized by the engine.
const (
	EnvAPIKey             = "ALGEBRAS_API_KEY"
	EnvBatchSize          = "ALGEBRAS_BATCH_SIZE"
	EnvMaxParallelBatches = "ALGEBRAS_MAX_PARALLEL_BATCHES"
)

// ---------------------------------------------------------------------------
// Locale
// ---------------------------------------------------------------------------

// Locale is one entry of the languages list. Internal is the code used as a
// dictionary key throughout the engine; Destination is the code rendered
// into filenames and directory segments. For bare entries both are equal.
type Locale struct {
	Internal    string
	Destination string
}

// UnmarshalYAML accepts either a scalar ("fr") or a single-entry mapping
// ({uz: uz_Cyrl}).
func (l *Locale) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		l.Internal = node.Value
		l.Destination = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: locale mapping must have exactly one entry", node.Line)
		}
		l.Internal = node.Content[0].Value
		l.Destination = node.Content[1].Value
		return nil
	}
	return fmt.Errorf("line %d: locale must be a string or a single-entry mapping", node.Line)
}

// MarshalYAML renders bare entries as scalars and mapped entries as
// single-entry mappings.
func (l Locale) MarshalYAML() (any, error) {
	if l.Internal == l.Destination {
		return l.Internal, nil
	}
	return map[string]string{l.Internal: l.Destination}, nil
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// SourceFile routes one source file to a destination pattern. The pattern
// contains the literal token %algebras_locale_code%, replaced with the
// destination locale code at resolution time.
type SourceFile struct {
	DestinationPath string `yaml:"destination_path"`
}

// APIConfig holds provider-facing settings. The provider identifier itself
// is opaque to the engine.
type APIConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	GlossaryID       string `yaml:"glossary_id"`
	Prompt           string `yaml:"prompt"`
	NormalizeStrings *bool  `yaml:"normalize_strings"`
}

// XLFConfig holds XLIFF writer settings.
type XLFConfig struct {
	DefaultTargetState string `yaml:"default_target_state"`
}

// POConfig holds gettext writer settings.
type POConfig struct {
	MarkFuzzy bool `yaml:"mark_fuzzy"`
}

// Config is the parsed .algebras.config file plus applied defaults and
// environment overrides. It is read-only after Load.
type Config struct {
	Languages      []Locale              `yaml:"languages"`
	SourceLanguage string                `yaml:"source_language"`
	SourceFiles    map[string]SourceFile `yaml:"source_files"`
	PathRules      []string              `yaml:"path_rules"`
	API            APIConfig             `yaml:"api"`
	BatchSize      int                   `yaml:"batch_size"`
	MaxParallel    int                   `yaml:"max_parallel_batches"`
	XLF            XLFConfig             `yaml:"xlf"`
	PO             POConfig              `yaml:"po"`

	// Root is the directory containing the config file; relative paths in
	// source_files and path_rules resolve against it.
	Root string `yaml:"-"`

	// forward maps internal code to destination code; reverse the opposite.
	forward map[string]string
	reverse map[string]string
}

// Load reads and validates a config file. Returned warnings are
// informational (deprecations); the caller decides how to surface them.
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Root = filepath.Dir(path)

	// A .env next to the config participates in the environment overrides.
	_ = godotenv.Load(filepath.Join(cfg.Root, ".env"))

	var warnings []string
	if len(cfg.PathRules) > 0 {
		warnings = append(warnings, "path_rules is deprecated; prefer source_files with destination_path patterns")
	}

	if err := cfg.finish(); err != nil {
		return nil, warnings, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, warnings, nil
}

// finish applies defaults, environment overrides, and builds the locale
// lookup tables.
func (c *Config) finish() error {
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages list is empty")
	}

	if c.SourceLanguage == "" {
		c.SourceLanguage = c.Languages[0].Internal
	}

	c.forward = make(map[string]string, len(c.Languages))
	c.reverse = make(map[string]string, len(c.Languages))
	for _, l := range c.Languages {
		if l.Internal == "" {
			return fmt.Errorf("empty locale code in languages")
		}
		if _, dup := c.forward[l.Internal]; dup {
			return fmt.Errorf("duplicate locale %q in languages", l.Internal)
		}
		c.forward[l.Internal] = l.Destination
		c.reverse[l.Destination] = l.Internal
	}
	if _, ok := c.forward[c.SourceLanguage]; !ok {
		return fmt.Errorf("source_language %q is not in languages", c.SourceLanguage)
	}

	if c.BatchSize == 0 {
		c.BatchSize = envInt(EnvBatchSize, DefaultBatchSize)
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = envInt(EnvMaxParallelBatches, DefaultMaxParallelBatches)
	}
	if c.MaxParallel < 1 {
		c.MaxParallel = 1
	}

	if c.XLF.DefaultTargetState == "" {
		c.XLF.DefaultTargetState = DefaultXLFTargetState
	}
	return nil
}

func envInt(name string, fallback int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// APIKey returns the provider API key from the environment.
func (c *Config) APIKey() string { return os.Getenv(EnvAPIKey) }

// NormalizeStrings reports whether writers strip escape artifacts.
// Defaults to true when unset.
func (c *Config) NormalizeStrings() bool {
	if c.API.NormalizeStrings == nil {
		return true
	}
	return *c.API.NormalizeStrings
}

// TargetLocales returns the internal codes of all non-source locales.
func (c *Config) TargetLocales() []string {
	var out []string
	for _, l := range c.Languages {
		if l.Internal != c.SourceLanguage {
			out = append(out, l.Internal)
		}
	}
	return out
}

// DestinationOf maps an internal locale code to its destination code.
// Unknown codes map to themselves.
func (c *Config) DestinationOf(internal string) string {
	if d, ok := c.forward[internal]; ok {
		return d
	}
	return internal
}

// InternalOf maps a destination code back to the internal code.
// The second result is false for codes not declared in languages.
func (c *Config) InternalOf(destination string) (string, bool) {
	i, ok := c.reverse[destination]
	return i, ok
}

// HasLocale reports whether the internal code is declared.
func (c *Config) HasLocale(internal string) bool {
	_, ok := c.forward[internal]
	return ok
}
