// Package config loads execution settings from YAML or JSON files.
//
// Settings cover the operational knobs of a session: concurrency,
// timeouts, retry behavior, loop ceilings, and checkpoint location.
// Programmatic options take precedence over file settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML/JSON string parsing ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Retry configures transient-error retry for node execution.
type Retry struct {
	MaxAttempts  int      `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64  `yaml:"multiplier" json:"multiplier"`
}

// Loop configures the iteration ceiling for cyclic graphs.
type Loop struct {
	// Field is the state field holding the iteration counter.
	Field string `yaml:"field" json:"field"`

	// MaxPasses forces decision nodes onto their terminal route once the
	// counter reaches this value. Zero disables the ceiling.
	MaxPasses int `yaml:"max_passes" json:"max_passes"`
}

// Checkpoint configures session snapshot persistence.
type Checkpoint struct {
	// Path is the SQLite database path. Empty disables checkpointing
	// unless a store is supplied programmatically.
	Path string `yaml:"path" json:"path"`

	// FailFast aborts the session when a snapshot write fails instead of
	// logging and continuing.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// Settings holds all file-loadable execution configuration.
type Settings struct {
	MaxConcurrency int        `yaml:"max_concurrency" json:"max_concurrency"`
	NodeTimeout    Duration   `yaml:"node_timeout" json:"node_timeout"`
	MaxWaves       int        `yaml:"max_waves" json:"max_waves"`
	Retry          Retry      `yaml:"retry" json:"retry"`
	Loop           Loop       `yaml:"loop" json:"loop"`
	Checkpoint     Checkpoint `yaml:"checkpoint" json:"checkpoint"`
}

// Default returns the settings used when no file is loaded.
func Default() Settings {
	return Settings{
		MaxConcurrency: 0, // unbounded
		NodeTimeout:    0, // no per-node timeout
		MaxWaves:       1000,
		Retry: Retry{
			MaxAttempts:  3,
			InitialDelay: Duration(1 * time.Second),
			MaxDelay:     Duration(30 * time.Second),
			Multiplier:   2.0,
		},
		Loop: Loop{
			Field:     "iteration",
			MaxPasses: 0,
		},
	}
}

// FromFile loads settings from a YAML or JSON file, chosen by extension.
// Fields absent from the file keep their Default values.
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported settings format: %s", filepath.Ext(path))
	}
}

// FromYAML parses settings from YAML bytes over Default values.
func FromYAML(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse YAML settings: %w", err)
	}
	return s, s.validate()
}

// FromJSON parses settings from JSON bytes over Default values.
func FromJSON(data []byte) (Settings, error) {
	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse JSON settings: %w", err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	if s.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", s.MaxConcurrency)
	}
	if s.MaxWaves <= 0 {
		return fmt.Errorf("max_waves must be > 0, got %d", s.MaxWaves)
	}
	if s.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0, got %d", s.Retry.MaxAttempts)
	}
	if s.Loop.MaxPasses < 0 {
		return fmt.Errorf("loop.max_passes must be >= 0, got %d", s.Loop.MaxPasses)
	}
	if s.Loop.MaxPasses > 0 && s.Loop.Field == "" {
		return fmt.Errorf("loop.field is required when loop.max_passes is set")
	}
	return nil
}
