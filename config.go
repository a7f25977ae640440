package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stellar-hierarchy/hierarchy"
)

// HostConfig is the host configuration. Values come from the YAML file and
// are then overridden by any flag set on the command line.
type HostConfig struct {
	Name       string           `yaml:"name" json:"name"`
	Seed       string           `yaml:"seed" json:"seed"`
	DBPath     string           `yaml:"db" json:"db"`
	Address    string           `yaml:"address" json:"address"`
	Tick       time.Duration    `yaml:"tick" json:"tick"`
	SweepEvery uint64           `yaml:"sweep_every" json:"sweep_every"` // ticks between periodic sweeps
	NAT        bool             `yaml:"nat" json:"nat"`
	Engine     hierarchy.Config `yaml:"engine" json:"engine"`
}

// DefaultHostConfig returns the settings used when no file is given
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Name:       "Sol",
		DBPath:     "stellar-hierarchy.db",
		Address:    "0.0.0.0:8080",
		Tick:       time.Second,
		SweepEvery: 10,
		Engine:     hierarchy.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// not an error.
func LoadConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Engine = cfg.Engine.WithDefaults()
	return cfg, cfg.Validate()
}

// Validate rejects settings the host cannot run with
func (c HostConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.Tick)
	}
	if c.SweepEvery == 0 {
		return fmt.Errorf("sweep_every must be at least 1")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
