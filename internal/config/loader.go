package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// cleanupProfiles lists the cleanup profile names [Validate] accepts.
var cleanupProfiles = []string{"default", "clinical_light"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if p := cfg.Pipeline.CleanupProfile; p != "" && !slices.Contains(cleanupProfiles, p) {
		errs = append(errs, fmt.Errorf("pipeline.cleanup_profile %q is invalid; valid values: default, clinical_light", p))
	}

	if t := cfg.Pipeline.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	if w := cfg.Pipeline.Narrative.MaxLineLength; w < 0 {
		errs = append(errs, fmt.Errorf("pipeline.narrative.max_line_length %d must not be negative", w))
	}

	return errors.Join(errs...)
}
