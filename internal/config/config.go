package config

import (
	"fmt"
	"os"

	"github.com/davack/slate/pkg/boardstore"
	"gopkg.in/yaml.v3"
)

// SlateConfig represents the top-level slate.yml configuration
type SlateConfig struct {
	Version string       `yaml:"version"`
	Project string       `yaml:"project"`
	Channel string       `yaml:"channel,omitempty"` // default active channel
	Redis   RedisConfig  `yaml:"redis"`
	User    UserConfig   `yaml:"user"`
	Engine  EngineConfig `yaml:"engine,omitempty"`
	Media   *MediaConfig `yaml:"media,omitempty"`
}

// RedisConfig specifies the document store connection
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// UserConfig identifies the current user. Either a static id/name pair or a
// signed token (verified against auth_secret) must be present.
type UserConfig struct {
	ID         string `yaml:"id,omitempty"`
	Name       string `yaml:"name,omitempty"`
	Token      string `yaml:"token,omitempty"`
	AuthSecret string `yaml:"auth_secret,omitempty"`
}

// EngineConfig tunes the sync engine timers
type EngineConfig struct {
	DebounceMs      *int `yaml:"debounce_ms,omitempty"`       // snapshot ingestion debounce (default 50)
	SettleMs        *int `yaml:"settle_ms,omitempty"`         // transit settle delay after write confirmation (default 400)
	ApprovalGuardMs *int `yaml:"approval_guard_ms,omitempty"` // toggle-approval idempotent guard (default 1000)
}

// MediaConfig specifies the blob store used for asset uploads
type MediaConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// Validate performs strict validation on the configuration and applies
// defaults for optional settings.
func (c *SlateConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: project
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}

	// Default channel, then validate against the fixed set
	if c.Channel == "" {
		c.Channel = string(boardstore.ChannelInstagram)
	}
	if err := boardstore.Channel(c.Channel).Validate(); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}

	// Required: redis address
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	// User: either token+secret or static id/name
	if c.User.Token != "" {
		if c.User.AuthSecret == "" {
			return fmt.Errorf("user.auth_secret is required when user.token is set")
		}
	} else {
		if c.User.ID == "" {
			return fmt.Errorf("user.id is required (or provide user.token)")
		}
		if c.User.Name == "" {
			c.User.Name = c.User.ID
		}
	}

	// Apply engine timer defaults
	if c.Engine.DebounceMs == nil {
		defaultDebounce := 50
		c.Engine.DebounceMs = &defaultDebounce
	}
	if c.Engine.SettleMs == nil {
		defaultSettle := 400
		c.Engine.SettleMs = &defaultSettle
	}
	if c.Engine.ApprovalGuardMs == nil {
		defaultGuard := 1000
		c.Engine.ApprovalGuardMs = &defaultGuard
	}

	if *c.Engine.DebounceMs < 0 || *c.Engine.SettleMs < 0 || *c.Engine.ApprovalGuardMs < 0 {
		return fmt.Errorf("engine timers must be >= 0")
	}

	// Media is optional; when present it must be complete
	if c.Media != nil {
		if c.Media.Endpoint == "" {
			return fmt.Errorf("media.endpoint is required when media is configured")
		}
		if c.Media.Bucket == "" {
			return fmt.Errorf("media.bucket is required when media is configured")
		}
	}

	return nil
}

// Load reads and validates slate.yml from the specified path
func Load(path string) (*SlateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config SlateConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
