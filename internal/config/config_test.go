package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server != "http://localhost:7777" {
		t.Errorf("Server: got %q, want %q", cfg.Server, "http://localhost:7777")
	}
	if cfg.Interval != "200ms" {
		t.Errorf("Interval: got %q, want %q", cfg.Interval, "200ms")
	}
	if cfg.TimerInterval != "1s" {
		t.Errorf("TimerInterval: got %q, want %q", cfg.TimerInterval, "1s")
	}
}

// chtemp switches the working directory to a fresh temp dir so Load cannot
// pick up a real .buildtail.yaml.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BUILDTAIL_SERVER",
		"BUILDTAIL_INTERVAL",
		"BUILDTAIL_TIMER_INTERVAL",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_HEADERS",
		"HOME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithoutFileOrEnv(t *testing.T) {
	chtemp(t)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.IntervalDuration != 200*time.Millisecond {
		t.Errorf("IntervalDuration: got %v", cfg.IntervalDuration)
	}
	if cfg.TimerIntervalDuration != time.Second {
		t.Errorf("TimerIntervalDuration: got %v", cfg.TimerIntervalDuration)
	}
}

func TestLoad_FileValues(t *testing.T) {
	dir := chtemp(t)
	clearEnv(t)

	data := []byte("server: http://build.example.com:9000\ninterval: 500ms\n")
	if err := os.WriteFile(filepath.Join(dir, ".buildtail.yaml"), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != ".buildtail.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if cfg.Server != "http://build.example.com:9000" {
		t.Errorf("Server: got %q", cfg.Server)
	}
	if cfg.IntervalDuration != 500*time.Millisecond {
		t.Errorf("IntervalDuration: got %v", cfg.IntervalDuration)
	}
	// File left timer_interval unset: default survives the merge.
	if cfg.TimerInterval != "1s" {
		t.Errorf("TimerInterval: got %q", cfg.TimerInterval)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := chtemp(t)
	clearEnv(t)

	data := []byte("server: http://from-file:9000\ninterval: 500ms\n")
	if err := os.WriteFile(filepath.Join(dir, ".buildtail.yaml"), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BUILDTAIL_SERVER", "http://from-env:9000")
	t.Setenv("BUILDTAIL_INTERVAL", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server != "http://from-env:9000" {
		t.Errorf("Server: got %q, want env value", cfg.Server)
	}
	if cfg.IntervalDuration != time.Second {
		t.Errorf("IntervalDuration: got %v, want env value", cfg.IntervalDuration)
	}
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	chtemp(t)
	clearEnv(t)

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"unparseable interval", "BUILDTAIL_INTERVAL", "fast"},
		{"zero interval", "BUILDTAIL_INTERVAL", "0s"},
		{"negative timer interval", "BUILDTAIL_TIMER_INTERVAL", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tt.env, tt.val)
			}
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	dir := chtemp(t)
	clearEnv(t)

	if err := os.WriteFile(filepath.Join(dir, ".buildtail.yaml"), []byte("server: [oops\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}
