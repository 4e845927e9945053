// Package config loads run settings from YAML files for the CLI and server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Run holds the user-tunable settings for one optimization run. Field
// defaults follow the usual guidance: popsize 5-10x nvars, overinit equal to
// popsize for hard problems, mutate_dev in 0.4-1.2.
type Run struct {
	Problem   string  `yaml:"problem"`
	NVars     int     `yaml:"nvars"`
	PopSize   int     `yaml:"popsize"`
	OverInit  int     `yaml:"overinit"`
	MinTrades int     `yaml:"mintrades"`
	MaxEvals  int     `yaml:"maxEvals"`
	MaxBadGen int     `yaml:"maxBadGen"`
	MutateDev float64 `yaml:"mutateDev"`
	PCross    float64 `yaml:"pcross"`
	PClimb    float64 `yaml:"pclimb"`
	Seed      int64   `yaml:"seed"`
}

// Default returns the settings used when no file or flags override them.
func Default() Run {
	return Run{
		Problem:   "sphere",
		NVars:     2,
		PopSize:   20,
		OverInit:  0,
		MinTrades: 1,
		MaxEvals:  1000000,
		MaxBadGen: 50,
		MutateDev: 0.8,
		PCross:    0.5,
		PClimb:    0.2,
		Seed:      42,
	}
}

// Load reads a YAML run configuration, layered over the defaults.
func Load(path string) (Run, error) {
	run := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return run, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := run.Validate(); err != nil {
		return run, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return run, nil
}

// Validate checks the settings a file or flags could plausibly break.
func (r *Run) Validate() error {
	if r.Problem == "" {
		return fmt.Errorf("problem name is required")
	}
	if r.NVars < 1 {
		return fmt.Errorf("nvars must be positive, got %d", r.NVars)
	}
	if r.PopSize < 4 {
		return fmt.Errorf("popsize must be at least 4, got %d", r.PopSize)
	}
	if r.OverInit < 0 {
		return fmt.Errorf("overinit cannot be negative, got %d", r.OverInit)
	}
	if r.MinTrades < 1 {
		return fmt.Errorf("mintrades must be at least 1, got %d", r.MinTrades)
	}
	if r.MaxEvals < 1 {
		return fmt.Errorf("maxEvals must be positive, got %d", r.MaxEvals)
	}
	if r.MaxBadGen < 0 {
		return fmt.Errorf("maxBadGen cannot be negative, got %d", r.MaxBadGen)
	}
	if r.PCross < 0 || r.PCross > 1 {
		return fmt.Errorf("pcross must be in [0, 1], got %g", r.PCross)
	}
	if r.PClimb < 0 || r.PClimb > 1 {
		return fmt.Errorf("pclimb must be in [0, 1], got %g", r.PClimb)
	}
	return nil
}
