package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Severities accepted by lint.fail_on.
var validSeverities = []string{"info", "warning", "error"}

// Load reads the YAML configuration file at path on top of [Default] and
// returns the validated result.
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

// LoadOptional is [Load] that returns [Default] when path is empty or names
// a file that does not exist.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
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

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if t := cfg.Lint.PhoneticThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("lint.phonetic_threshold %.2f is out of range (0, 1]", t))
	}
	if t := cfg.Lint.FuzzyThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("lint.fuzzy_threshold %.2f is out of range (0, 1]", t))
	}
	if !slices.Contains(validSeverities, cfg.Lint.FailOn) {
		errs = append(errs, fmt.Errorf("lint.fail_on %q is invalid; valid values: info, warning, error", cfg.Lint.FailOn))
	}
	for i, p := range cfg.Lint.Workspace {
		if p == "" {
			errs = append(errs, fmt.Errorf("lint.workspace[%d] is empty", i))
		}
	}

	if cfg.Watch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("watch.interval %s must be positive", cfg.Watch.Interval))
	}
	if addr := cfg.Watch.ListenAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("watch.listen_addr %q is invalid: %w", addr, err))
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name is required"))
	}

	return errors.Join(errs...)
}
