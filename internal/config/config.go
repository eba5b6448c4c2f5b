// Package config provides the configuration schema and loader for the
// questpack command line tool.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
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

// Level returns the slog level for l. Unknown levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; fields left out keep the values
// of [Default].
type Config struct {
	LogLevel  LogLevel        `yaml:"log_level"`
	Store     StoreConfig     `yaml:"store"`
	Lint      LintConfig      `yaml:"lint"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig configures the PostgreSQL package store.
type StoreConfig struct {
	// PostgresDSN is the connection string of the store database. Store
	// commands fail when it is empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LintConfig tunes the linter.
type LintConfig struct {
	// PhoneticThreshold is the minimum Jaro-Winkler score of a phonetically
	// similar suggestion, in (0, 1].
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum Jaro-Winkler score of a suggestion
	// without phonetic similarity, in (0, 1].
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// FailOn is the lowest severity that makes the lint command fail:
	// info, warning or error.
	FailOn string `yaml:"fail_on"`

	// Workspace lists additional archives or package directories loaded to
	// resolve references into other packages.
	Workspace []string `yaml:"workspace"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// Interval is the polling interval.
	Interval time.Duration `yaml:"interval"`

	// ListenAddr is the address of the /healthz, /readyz and /metrics
	// listener, e.g. ":9090". Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Lint: LintConfig{
			PhoneticThreshold: 0.70,
			FuzzyThreshold:    0.85,
			FailOn:            "error",
		},
		Watch: WatchConfig{
			Interval: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "questpack",
		},
	}
}
