package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	content := `
store:
  dir: "/var/lib/cubo"
state:
  backend: "redis"
  redis:
    addr: "127.0.0.1:6379"
poller:
  interval: "250ms"
report:
  writers:
    - type: "json"
      enabled: true
      root_path: "out"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Store.Dir != "/var/lib/cubo" {
		t.Errorf("Expected store dir '/var/lib/cubo', got '%s'", cfg.Store.Dir)
	}
	if cfg.State.Backend != "redis" {
		t.Errorf("Expected redis backend, got '%s'", cfg.State.Backend)
	}
	if cfg.Store.EventLog != "udp_log.jsonl" {
		t.Errorf("Expected default event log name, got '%s'", cfg.Store.EventLog)
	}
	if cfg.Store.MaxKnownOperators != 50 {
		t.Errorf("Expected 50 known operators, got %d", cfg.Store.MaxKnownOperators)
	}
	if len(cfg.Report.Writers) != 1 || cfg.Report.Writers[0].Type != "json" {
		t.Errorf("Expected the configured json writer only, got %+v", cfg.Report.Writers)
	}
	if got := cfg.Store.Path(cfg.Store.EventLog); got != filepath.Join("/var/lib/cubo", "udp_log.jsonl") {
		t.Errorf("Unexpected event log path: %s", got)
	}

	d, err := ParseDuration("poller interval", cfg.Poller.Interval)
	if err != nil {
		t.Fatalf("ParseDuration failed: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", d)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "soon"},
		{"zero", "0s"},
		{"negative", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDuration("cooldown", tt.value); err == nil {
				t.Errorf("Expected an error for %q", tt.value)
			}
		})
	}
}
