package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stellar-hierarchy/hierarchy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%q): %v", path, err)
		}
		if cfg != DefaultHostConfig() {
			t.Errorf("LoadConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
name: Trappist
seed: trappist-1
tick: 250ms
sweep_every: 4
engine:
  mode: kepler
  switch_margin: 2.5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "Trappist" || cfg.Seed != "trappist-1" {
		t.Errorf("identity = %q/%q", cfg.Name, cfg.Seed)
	}
	if cfg.Tick != 250*time.Millisecond || cfg.SweepEvery != 4 {
		t.Errorf("tick = %s every %d", cfg.Tick, cfg.SweepEvery)
	}
	if cfg.Engine.Mode != hierarchy.ModeKeplerian || cfg.Engine.SwitchMargin != 2.5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	// Unset fields keep their defaults
	if cfg.Address != "0.0.0.0:8080" || cfg.Engine.StealMultiplier != 3 {
		t.Errorf("defaults lost: address %q, steal %g", cfg.Address, cfg.Engine.StealMultiplier)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "name: [unterminated"},
		{"zero sweep interval", "sweep_every: 0"},
		{"negative tick", "tick: -1s"},
		{"unknown mode", "engine:\n  mode: orrery"},
		{"switch margin below one", "engine:\n  switch_margin: 0.5"},
		{"empty name", `name: ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Errorf("LoadConfig accepted %q", tt.content)
			}
		})
	}
}
