// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package config loads the optional layer configuration file.
// The file is TOML; its location is taken from the WSISHIM_CONFIG
// environment variable. A missing file is not an error, in which
// case every field assumes its default value.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/gviegas/wsishim/internal/log"
)

// Config holds the layer-wide settings.
type Config struct {
	// ForcePresentMode overrides the present mode requested at
	// swapchain creation. Valid values are "fifo" and "mailbox".
	// Empty means no override.
	ForcePresentMode string `toml:"force_present_mode"`

	// MaxImageCount caps the number of images a swapchain may
	// have. Zero means no cap beyond the surface's own limit.
	MaxImageCount int `toml:"max_image_count"`

	// LogLevel sets the logging verbosity (0-4).
	// Negative means keep the current level.
	LogLevel int `toml:"log_level"`

	// PresentTiming enables retention of presentation timing
	// hints on queued presents.
	PresentTiming bool `toml:"present_timing"`
}

// EnvVar names the environment variable that locates the
// configuration file.
const EnvVar = "WSISHIM_CONFIG"

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{LogLevel: -1}
}

// Load reads the configuration named by EnvVar.
// If the variable is unset, it returns Default with no error.
func Load() (Config, error) {
	path, ok := os.LookupEnv(EnvVar)
	if !ok || path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from a specific file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Default(), err
	}
	if cfg.LogLevel >= 0 {
		log.SetLevel(log.Level(cfg.LogLevel))
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ForcePresentMode {
	case "", "fifo", "mailbox":
	default:
		return fmt.Errorf("config: unknown present mode %q", c.ForcePresentMode)
	}
	if c.MaxImageCount < 0 {
		return fmt.Errorf("config: negative max_image_count %d", c.MaxImageCount)
	}
	return nil
}
