// Package config provides configuration loading and management for patchinpaint.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"patchinpaint/pkg/inpainting"
	"patchinpaint/pkg/lasso"
	"patchinpaint/pkg/regression"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Inpainting parameters
	Inpainting struct {
		// PatchHalfSize is h; patches are (2h+1)x(2h+1) pixels
		PatchHalfSize int `yaml:"patchHalfSize"`

		// Stride between dictionary candidate centres, 0 means PatchHalfSize
		Stride int `yaml:"stride"`

		// MaxMissingPerAtom is the number of dead pixels tolerated in an atom
		MaxMissingPerAtom int `yaml:"maxMissingPerAtom"`

		// NearestAtoms limits each fit to the closest atoms, 0 means all
		NearestAtoms int `yaml:"nearestAtoms"`

		// ParallelChannels fits the colour channels concurrently
		ParallelChannels bool `yaml:"parallelChannels"`
	} `yaml:"inpainting"`

	// Sparse regression solver parameters
	Solver struct {
		// Alpha is the L1 regularisation strength
		Alpha float64 `yaml:"alpha"`

		// MaxIterations caps coordinate descent sweeps
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance is the convergence tolerance
		Tolerance float64 `yaml:"tolerance"`

		// Selection is "cyclic" or "random"
		Selection string `yaml:"selection"`

		// Seed drives random selection
		Seed int64 `yaml:"seed"`
	} `yaml:"solver"`

	// Damage applied to the input before inpainting
	Damage struct {
		// Rectangle to remove; Height or Width < 0 extends to the image edge
		Row    int `yaml:"row"`
		Col    int `yaml:"col"`
		Height int `yaml:"height"`
		Width  int `yaml:"width"`

		// NoiseRate is the fraction of pixels killed at random
		NoiseRate float64 `yaml:"noiseRate"`

		// Seed for the noise generator
		Seed int64 `yaml:"seed"`
	} `yaml:"damage"`

	// Output parameters
	Output struct {
		// MaxDimension downscales inputs whose larger side exceeds it, 0 disables
		MaxDimension int `yaml:"maxDimension"`

		// SaveIntermediaryResults saves frames of the fill while it runs
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryEvery is the number of fill steps between frames
		IntermediaryEvery int `yaml:"intermediaryEvery"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Inpainting.PatchHalfSize = 10
	cfg.Inpainting.Stride = 0
	cfg.Inpainting.MaxMissingPerAtom = 0
	cfg.Inpainting.NearestAtoms = 0
	cfg.Inpainting.ParallelChannels = false

	cfg.Solver.Alpha = 1e-4
	cfg.Solver.MaxIterations = 100000
	cfg.Solver.Tolerance = 1e-4
	cfg.Solver.Selection = lasso.Cyclic.String()
	cfg.Solver.Seed = 0

	cfg.Damage.Row = 288
	cfg.Damage.Col = 497
	cfg.Damage.Height = 190
	cfg.Damage.Width = 80
	cfg.Damage.NoiseRate = 0
	cfg.Damage.Seed = 1

	cfg.Output.MaxDimension = 0
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryEvery = 50
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks every value against its allowed range
func (c *Config) Validate() error {
	var errs []error
	if c.Inpainting.PatchHalfSize <= 0 {
		errs = append(errs, fmt.Errorf("inpainting.patchHalfSize must be positive, got %d", c.Inpainting.PatchHalfSize))
	}
	if c.Inpainting.Stride < 0 {
		errs = append(errs, fmt.Errorf("inpainting.stride must be non-negative, got %d", c.Inpainting.Stride))
	}
	if c.Inpainting.MaxMissingPerAtom < 0 {
		errs = append(errs, fmt.Errorf("inpainting.maxMissingPerAtom must be non-negative, got %d", c.Inpainting.MaxMissingPerAtom))
	}
	if c.Inpainting.NearestAtoms < 0 {
		errs = append(errs, fmt.Errorf("inpainting.nearestAtoms must be non-negative, got %d", c.Inpainting.NearestAtoms))
	}
	if c.Solver.Alpha <= 0 {
		errs = append(errs, fmt.Errorf("solver.alpha must be positive, got %g", c.Solver.Alpha))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver.maxIterations must be positive, got %d", c.Solver.MaxIterations))
	}
	if c.Solver.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("solver.tolerance must be positive, got %g", c.Solver.Tolerance))
	}
	if _, err := lasso.ParseSelection(c.Solver.Selection); err != nil {
		errs = append(errs, fmt.Errorf("solver.selection: %w", err))
	}
	if c.Damage.NoiseRate < 0 || c.Damage.NoiseRate > 1 {
		errs = append(errs, fmt.Errorf("damage.noiseRate must be within [0, 1], got %g", c.Damage.NoiseRate))
	}
	if c.Output.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("output.maxDimension must be non-negative, got %d", c.Output.MaxDimension))
	}
	if c.Output.SaveIntermediaryResults && c.Output.IntermediaryEvery <= 0 {
		errs = append(errs, fmt.Errorf("output.intermediaryEvery must be positive, got %d", c.Output.IntermediaryEvery))
	}
	return errors.Join(errs...)
}

// EngineParams converts the configuration into inpainting parameters.
// Callbacks and the logger are left for the caller to set.
func (c *Config) EngineParams() (inpainting.Params, error) {
	if err := c.Validate(); err != nil {
		return inpainting.Params{}, err
	}
	selection, _ := lasso.ParseSelection(c.Solver.Selection)

	params := inpainting.Params{
		PatchHalfSize:     c.Inpainting.PatchHalfSize,
		Stride:            c.Inpainting.Stride,
		MaxMissingPerAtom: c.Inpainting.MaxMissingPerAtom,
		NearestAtoms:      c.Inpainting.NearestAtoms,
		Alpha:             c.Solver.Alpha,
		MaxIterations:     c.Solver.MaxIterations,
		Tolerance:         c.Solver.Tolerance,
		ParallelChannels:  c.Inpainting.ParallelChannels,
	}

	if selection != lasso.Cyclic {
		alpha, maxIter, tol, seed := c.Solver.Alpha, c.Solver.MaxIterations, c.Solver.Tolerance, c.Solver.Seed
		params.Solver = func() regression.Solver {
			l := lasso.New(alpha, maxIter, tol)
			l.Selection = selection
			l.Seed = seed
			return l
		}
	}
	return params, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
