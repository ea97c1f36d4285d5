// Package config loads and validates genie.yml, the session configuration
// for the Genie dashboard core.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPersistDebounceMs is the layout persistence debounce window
// applied when the config does not specify one.
const DefaultPersistDebounceMs = 500

// GenieConfig represents the top-level genie.yml configuration.
type GenieConfig struct {
	Version string        `yaml:"version"`
	Session string        `yaml:"session,omitempty"` // session name; generated when omitted
	Redis   RedisConfig   `yaml:"redis"`
	Store   StoreConfig   `yaml:"store"`
	Layout  *LayoutConfig `yaml:"layout,omitempty"`
}

// RedisConfig locates the tool-call event transport.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StoreConfig locates the remote dashboard store's MCP endpoint.
type StoreConfig struct {
	URL string `yaml:"url"`
}

// LayoutConfig holds rendering-facing settings.
type LayoutConfig struct {
	// Breakpoint is the layout breakpoint the session operates on
	Breakpoint string `yaml:"breakpoint,omitempty"`

	// PersistDebounceMs is the trailing-edge debounce window for persisting
	// drag/resize results, in milliseconds
	PersistDebounceMs *int `yaml:"persist_debounce_ms,omitempty"`

	// DashboardID pins the session-start fetch to one stored dashboard
	DashboardID string `yaml:"dashboard_id,omitempty"`
}

// Validate performs strict validation on the configuration and applies
// defaults for optional settings.
func (c *GenieConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}

	if c.Layout == nil {
		c.Layout = &LayoutConfig{}
	}
	if c.Layout.Breakpoint == "" {
		c.Layout.Breakpoint = "lg"
	}
	if c.Layout.PersistDebounceMs == nil {
		defaultDebounce := DefaultPersistDebounceMs
		c.Layout.PersistDebounceMs = &defaultDebounce
	}
	if *c.Layout.PersistDebounceMs < 0 {
		return fmt.Errorf("layout.persist_debounce_ms must be >= 0, got %d", *c.Layout.PersistDebounceMs)
	}

	return nil
}

// Load reads and validates genie.yml from the specified path.
func Load(path string) (*GenieConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config GenieConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
