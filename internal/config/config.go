// Package config loads the optional user configuration file carrying
// defaults the CLI flags can override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "squeaker"
	configFileName = "config.yaml"
)

// Config holds user defaults. All fields are optional; flags override.
type Config struct {
	// VM is the default Smalltalk VM executable path. Empty means
	// autodetect.
	VM string `yaml:"vm,omitempty"`
	// Headless, when set, is the default for the VM headless flag.
	Headless *bool `yaml:"headless,omitempty"`
}

// DefaultPath returns the default config file location.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/squeaker.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName, configFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", configDirName, configFileName)
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault loads the default config file, returning an empty Config
// when none exists.
func LoadDefault() (*Config, error) {
	path := DefaultPath()
	if path == "" {
		return &Config{}, nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
