// Package config provides the configuration schema and loader for the
// voxnorm normalization pipeline.
package config

import (
	"github.com/centomomd/voxnorm/internal/narrative"
)

// LogLevel controls log verbosity for the voxnorm CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxnorm.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g. ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// PipelineConfig tunes the normalization pipeline stages.
type PipelineConfig struct {
	// Language is the BCP-47 language tag stamped into dialog metadata.
	// Defaults to "fr-CA".
	Language string `yaml:"language"`

	// CleanupProfile names the cleanup policy ("default" or
	// "clinical_light").
	CleanupProfile string `yaml:"cleanup_profile"`

	// LexiconPath points to a YAML cue lexicon overriding the built-in
	// bilingual one. Empty uses the built-in lexicon.
	LexiconPath string `yaml:"lexicon_path"`

	// FuzzyCues enables phonetic cue matching against transcription
	// misspellings.
	FuzzyCues bool `yaml:"fuzzy_cues"`

	// FuzzyThreshold is the Jaro-Winkler similarity floor for fuzzy cue
	// matches. Zero uses the built-in default.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// Narrative tunes narrative rendering.
	Narrative narrative.Options `yaml:"narrative"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Pipeline: PipelineConfig{
			Language:       "fr-CA",
			CleanupProfile: "default",
		},
	}
}
