// Package config loads buildtail configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (BUILDTAIL_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .buildtail.yaml in current directory
//  2. ~/.config/buildtail/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all buildtail configuration.
type Config struct {
	// Server is the report server base URL.
	Server string `yaml:"server"`

	// Interval is the tail polling period as a Go duration string, e.g. "200ms".
	Interval string `yaml:"interval"`
	// TimerInterval is the elapsed-time render period, e.g. "1s".
	TimerInterval string `yaml:"timer_interval"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from YAML, set after loading)
	IntervalDuration      time.Duration `yaml:"-"`
	TimerIntervalDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Server:        "http://localhost:7777",
		Interval:      "200ms",
		TimerInterval: "1s",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	var err error
	cfg.IntervalDuration, err = time.ParseDuration(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval %q: %w", cfg.Interval, err)
	}
	cfg.TimerIntervalDuration, err = time.ParseDuration(cfg.TimerInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid timer interval %q: %w", cfg.TimerInterval, err)
	}
	if cfg.IntervalDuration <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %q", cfg.Interval)
	}
	if cfg.TimerIntervalDuration <= 0 {
		return nil, fmt.Errorf("timer interval must be positive, got %q", cfg.TimerInterval)
	}

	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	if data, err := os.ReadFile(".buildtail.yaml"); err == nil {
		return ".buildtail.yaml", data, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "buildtail", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Server != "" {
		cfg.Server = file.Server
	}
	if file.Interval != "" {
		cfg.Interval = file.Interval
	}
	if file.TimerInterval != "" {
		cfg.TimerInterval = file.TimerInterval
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("BUILDTAIL_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("BUILDTAIL_INTERVAL"); v != "" {
		cfg.Interval = v
	}
	if v := os.Getenv("BUILDTAIL_TIMER_INTERVAL"); v != "" {
		cfg.TimerInterval = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
}
