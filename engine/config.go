package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/propstore/database"
	"github.com/tailored-agentic-units/propstore/property"
)

const (
	defaultAutosave = "30s"
	defaultObserver = "slog"
)

// Config holds initialization parameters for every subsystem of an Engine.
type Config struct {
	Property property.Config `json:"property"`
	Database database.Config `json:"database"`
	Autosave string          `json:"autosave,omitempty"` // Flush period as a Go duration; "0" disables autosave.
	Observer string          `json:"observer,omitempty"` // Name registered with observability.RegisterObserver.
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Property: property.DefaultConfig(),
		Database: database.DefaultConfig(),
		Autosave: defaultAutosave,
		Observer: defaultObserver,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Property.Merge(&source.Property)
	c.Database.Merge(&source.Database)

	if source.Autosave != "" {
		c.Autosave = source.Autosave
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// AutosavePeriod parses Autosave. Zero means autosave is disabled.
func (c *Config) AutosavePeriod() (time.Duration, error) {
	if c.Autosave == "" {
		return 0, nil
	}
	period, err := time.ParseDuration(c.Autosave)
	if err != nil {
		return 0, fmt.Errorf("invalid autosave period %q: %w", c.Autosave, err)
	}
	if period < 0 {
		return 0, fmt.Errorf("invalid autosave period %q: negative", c.Autosave)
	}
	return period, nil
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
