package hierarchy

import (
	"fmt"
	"strings"
)

// PhysicsMode says how the host simulation moves bodies. Only NBody lets
// parents change; Keplerian orbits are fixed and the engine stays idle.
type PhysicsMode string

const (
	ModeKeplerian PhysicsMode = "kepler"
	ModeNBody     PhysicsMode = "nbody"
)

// ParsePhysicsMode accepts "kepler"/"keplerian" and "nbody"/"n-body".
func ParsePhysicsMode(s string) (PhysicsMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kepler", "keplerian":
		return ModeKeplerian, nil
	case "nbody", "n-body", "n_body":
		return ModeNBody, nil
	}
	return "", fmt.Errorf("unknown physics mode %q", s)
}

// Config holds the engine's thresholds.
//
// StealMultiplier (reactive tug-of-war) and SwitchMargin (periodic rebalancing)
// are separate on purpose and must not be merged.
type Config struct {
	Mode PhysicsMode `yaml:"mode" json:"mode"`

	// A competing star whose pull exceeds StealMultiplier times the parent's
	// pull takes the child.
	StealMultiplier float64 `yaml:"steal_multiplier" json:"steal_multiplier"`

	// A planet switches star only when the alternative's influence beats the
	// current parent's by this factor.
	SwitchMargin float64 `yaml:"switch_margin" json:"switch_margin"`

	// An unbound child only escapes once it is beyond this many Hill radii.
	EscapeHillFactor float64 `yaml:"escape_hill_factor" json:"escape_hill_factor"`

	// Non-stellar candidates farther than PenaltyOnsetAU have their influence
	// scaled by exp(-PenaltyRatePerAU * distance_AU).
	PenaltyOnsetAU   float64 `yaml:"penalty_onset_au" json:"penalty_onset_au"`
	PenaltyRatePerAU float64 `yaml:"penalty_rate_per_au" json:"penalty_rate_per_au"`
}

// DefaultConfig returns the stock thresholds in N-body mode.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeNBody,
		StealMultiplier:  3.0,
		SwitchMargin:     1.5,
		EscapeHillFactor: 2.0,
		PenaltyOnsetAU:   0.1,
		PenaltyRatePerAU: 10.0,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.StealMultiplier <= 0 {
		c.StealMultiplier = d.StealMultiplier
	}
	if c.SwitchMargin <= 0 {
		c.SwitchMargin = d.SwitchMargin
	}
	if c.EscapeHillFactor <= 0 {
		c.EscapeHillFactor = d.EscapeHillFactor
	}
	if c.PenaltyOnsetAU <= 0 {
		c.PenaltyOnsetAU = d.PenaltyOnsetAU
	}
	if c.PenaltyRatePerAU <= 0 {
		c.PenaltyRatePerAU = d.PenaltyRatePerAU
	}
	return c
}

// Validate rejects thresholds that would make the engine oscillate.
func (c Config) Validate() error {
	if _, err := ParsePhysicsMode(string(c.Mode)); err != nil {
		return err
	}
	if c.SwitchMargin < 1 {
		return fmt.Errorf("switch_margin must be >= 1, got %g", c.SwitchMargin)
	}
	if c.StealMultiplier < 1 {
		return fmt.Errorf("steal_multiplier must be >= 1, got %g", c.StealMultiplier)
	}
	if c.EscapeHillFactor < 1 {
		return fmt.Errorf("escape_hill_factor must be >= 1, got %g", c.EscapeHillFactor)
	}
	return nil
}

// Dynamic reports whether the mode allows reassignment.
func (c Config) Dynamic() bool {
	return c.Mode == ModeNBody
}
