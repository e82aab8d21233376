// Package main - persistence.go
//
// This file implements loading of the bot configuration from a YAML file.
// The bot never writes state back: every run starts from the file (or the
// built-in defaults) and nothing is persisted across runs.
//
// File Format:
// YAML with one section per component. Any key left out keeps its default
// from NewConfig(). Example:
//
//   capture:
//     backend: screen
//     display: 0
//     region: {x: 0, y: 200, w: 900, h: 300}
//     interval: 0s
//   match:
//     min_confidence: 0.8
//   scene:
//     mode: auto
//     day_threshold: 180
//   decision:
//     low: 40
//     high: 260
//   keys:
//     jump: space
//     duck: down
//     duck_hold: 400ms
//
// Load Behavior:
//   - If the file doesn't exist: Use default configuration
//   - If the file exists: Decode over the defaults, reject unknown keys
//   - Always: Validate the result before returning it
//
// Error Handling:
// Unlike a missing file, a malformed or invalid file is returned as an error.
// The caller treats it as a fatal setup failure.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no -config flag is given
const DefaultConfigFile = "dino.yaml"

// LoadConfig loads the configuration from path over the defaults.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Read, decode or validation error (wraps ErrInvalidConfig for bad values)
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		LogInfo("No config file at %s, using defaults", path)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err := decodeConfig(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	LogInfo("Config loaded from %s", path)
	return cfg, nil
}

// decodeConfig decodes YAML from r into cfg, keeping fields the document omits
func decodeConfig(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// Empty document
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
