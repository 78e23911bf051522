package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models jurybox.yml.
type Config struct {
	Platform struct {
		ID string `yaml:"id"`
	} `yaml:"platform"`
	Routing struct {
		// Trophy rewards granted to accepted workers, by importance tier.
		Rewards struct {
			Low    int `yaml:"low"`
			Medium int `yaml:"medium"`
			High   int `yaml:"high"`
		} `yaml:"rewards"`
	} `yaml:"routing"`
	Reputation struct {
		AcceptDelta float64 `yaml:"accept_delta"`
		RejectDelta float64 `yaml:"reject_delta"`
	} `yaml:"reputation"`
	Consensus struct {
		// Minimum share of total trust weight the winning group needs on
		// high-importance tasks.
		HighWeightThreshold float64 `yaml:"high_weight_threshold"`
		// Hours before a task stuck without consensus may be reaped.
		PendingDeadlineHours int `yaml:"pending_deadline_hours"`
	} `yaml:"consensus"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Default returns the platform defaults.
func Default() *Config {
	var c Config
	c.Platform.ID = "jurybox"
	c.Routing.Rewards.Low = 10
	c.Routing.Rewards.Medium = 25
	c.Routing.Rewards.High = 50
	c.Reputation.AcceptDelta = 0.02
	c.Reputation.RejectDelta = -0.03
	c.Consensus.HighWeightThreshold = 0.6
	c.Consensus.PendingDeadlineHours = 72
	return &c
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "jurybox.yml")
}

// Load reads config from workspace, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes, filling unset fields from
// defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config is internally consistent.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return fmt.Errorf("config.platform.id is required")
	}
	if c.Reputation.AcceptDelta <= 0 {
		return fmt.Errorf("config.reputation.accept_delta must be positive")
	}
	if c.Reputation.RejectDelta >= 0 {
		return fmt.Errorf("config.reputation.reject_delta must be negative")
	}
	if c.Consensus.HighWeightThreshold <= 0.5 || c.Consensus.HighWeightThreshold > 1 {
		return fmt.Errorf("config.consensus.high_weight_threshold must be in (0.5, 1]")
	}
	if c.Consensus.PendingDeadlineHours <= 0 {
		return fmt.Errorf("config.consensus.pending_deadline_hours must be positive")
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
	}
	return nil
}

// ToYAML serializes the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// RewardFor returns the trophy reward for an importance tier name.
func (c *Config) RewardFor(tier string) int {
	switch tier {
	case "high":
		return c.Routing.Rewards.High
	case "medium":
		return c.Routing.Rewards.Medium
	default:
		return c.Routing.Rewards.Low
	}
}
