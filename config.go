// -*- tab-width:2 -*-

package netchan

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration rejection; the
// daemon refuses to run before consuming any packet.
var ErrInvalidConfig = errors.New("invalid configuration")

// ShutdownPolicy selects what happens to still-scheduled packets when
// a channel shuts down.
type ShutdownPolicy string

// drain forwards pending packets within the grace period; discard
// drops them on the floor (counted).
const (
	ShutdownDrain   ShutdownPolicy = "drain"
	ShutdownDiscard ShutdownPolicy = "discard"
)

// DistParams are the distribution parameters as they appear in
// channel.yml under distribution.parameters.
type DistParams struct {
	Lambda Milliseconds `yaml:"lambda"`
	Mu     Milliseconds `yaml:"mu"`
	Sigma  Milliseconds `yaml:"sigma"`
	Low    Milliseconds `yaml:"low"`
	High   Milliseconds `yaml:"high"`
}

// DistConfig is the tagged distribution block of a channel.
type DistConfig struct {
	Type       DelayModel `yaml:"type"`
	Parameters DistParams `yaml:"parameters"`
}

// spec flattens the yaml block into the sampler's spec.
func (d DistConfig) spec() DelaySpec {
	return DelaySpec{
		Model:  d.Type,
		Lambda: d.Parameters.Lambda,
		Mu:     d.Parameters.Mu,
		Sigma:  d.Parameters.Sigma,
		Low:    d.Parameters.Low,
		High:   d.Parameters.High,
	}
}

// ChannelConfig is the immutable per-channel snapshot, loaded once at
// startup and passed into each component at construction.
type ChannelConfig struct {
	MinDelay        Milliseconds   `yaml:"min_delay"`
	MaxDelay        Milliseconds   `yaml:"max_delay"`
	Jitter          Milliseconds   `yaml:"jitter"`
	DropProbability float64        `yaml:"drop_probability"`
	Distribution    DistConfig     `yaml:"distribution"`
	Retry           *RetryPolicy   `yaml:"retry"`
	Shutdown        ShutdownPolicy `yaml:"shutdown_policy"`
	DrainGrace      Milliseconds   `yaml:"drain_grace"` // bound on shutdown forwarding
	CapturePath     string         `yaml:"capture_path"`
	Seed            uint64         `yaml:"seed"` // 0 means time-based
}

const defaultDrainGraceMs = 30_000

// applyDefaults fills the optional fields a channel.yml may omit.
// It runs before Validate and is the only place a config mutates.
func (c *ChannelConfig) applyDefaults() {
	if c.DrainGrace == 0 {
		c.DrainGrace = defaultDrainGraceMs
	}

	if c.Shutdown == "" {
		c.Shutdown = ShutdownDrain
	}

	if c.Retry == nil {
		c.Retry = DefaultRetryPolicy()
	}
}

// Validate rejects out-of-domain values; it never mutates the
// config. An empty shutdown_policy or nil retry block is valid and
// means the default. The sampler re-checks the distribution
// parameters at construction.
func (c *ChannelConfig) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("%w: delay bounds [%v, %v]",
			ErrInvalidConfig, c.MinDelay, c.MaxDelay)
	}

	if c.Jitter < 0 {
		return fmt.Errorf("%w: jitter %v must be >= 0", ErrInvalidConfig, c.Jitter)
	}

	if c.DropProbability < 0 || c.DropProbability > 1 {
		return fmt.Errorf("%w: drop_probability %v outside [0, 1]",
			ErrInvalidConfig, c.DropProbability)
	}

	if c.DrainGrace < 0 {
		return fmt.Errorf("%w: drain_grace %v must be >= 0",
			ErrInvalidConfig, c.DrainGrace)
	}

	switch c.Shutdown {
	case ShutdownDrain, ShutdownDiscard, "":
	default:
		return fmt.Errorf("%w: shutdown_policy %q", ErrInvalidConfig, c.Shutdown)
	}

	if c.Retry != nil {
		if err := c.Retry.validate(); err != nil {
			return err
		}
	}

	// Exercise the sampler constructor so bad distribution params are
	// caught at load time, not at the first packet.
	if _, err := NewSampler(c.Distribution.spec(), nil); err != nil {
		return err
	}

	return nil
}

// Config is the whole channel.yml document.
type Config struct {
	RequestChannel ChannelConfig `yaml:"request_channel"`
	ReplyChannel   ChannelConfig `yaml:"reply_channel"`
}

// Channel returns the block for the given channel id.
func (c *Config) Channel(id ChannelID) *ChannelConfig {
	if id == ChannelReply {
		return &c.ReplyChannel
	}

	return &c.RequestChannel
}

func (c *Config) applyDefaults() {
	c.RequestChannel.applyDefaults()
	c.ReplyChannel.applyDefaults()
}

// Validate checks both channel blocks.
func (c *Config) Validate() error {
	if err := c.RequestChannel.Validate(); err != nil {
		return fmt.Errorf("request_channel: %w", err)
	}

	if err := c.ReplyChannel.Validate(); err != nil {
		return fmt.Errorf("reply_channel: %w", err)
	}

	return nil
}

// LoadConfig reads and validates a channel.yml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses and validates a channel.yml document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
