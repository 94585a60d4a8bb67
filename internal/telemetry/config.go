// Package telemetry sends anonymous, opt-in usage events to PostHog. It is
// off unless a PostHog key is configured, and never records tool arguments
// or caller identities.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ConfigFileName is the name of the telemetry state file.
const ConfigFileName = "telemetry.json"

// Config holds the persisted telemetry state.
type Config struct {
	// Enabled indicates whether events are sent.
	Enabled bool `json:"enabled"`

	// AnonymousID is a random UUID generated once per data directory.
	AnonymousID string `json:"anonymous_id"`
}

// Load reads the telemetry state from dir, creating it with a fresh
// anonymous ID if it does not exist yet. A new state is enabled; an
// existing one keeps whatever the operator set.
func Load(fs afero.Fs, dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read telemetry config: %w", err)
		}
		cfg := &Config{Enabled: true, AnonymousID: uuid.New().String()}
		if err := cfg.Save(fs, dir); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse telemetry config: %w", err)
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
		if err := cfg.Save(fs, dir); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Save writes the state to dir with owner-only permissions.
func (c *Config) Save(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, ConfigFileName), data, 0600); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return nil
}

// IsEnabled reports whether events may be sent. A nil state is disabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}
