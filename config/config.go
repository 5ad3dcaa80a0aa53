// Package config loads the service configuration from a file with optional
// environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/haulcommand/dispatchd/core/dispatch"
	"github.com/haulcommand/dispatchd/core/intel"
	"github.com/haulcommand/dispatchd/core/metrics"
	"github.com/haulcommand/dispatchd/infra/mqtt"
	"github.com/haulcommand/dispatchd/infra/postgres"
	"github.com/haulcommand/dispatchd/infra/redis"
)

// Config aggregates every component's settings.
type Config struct {
	Database postgres.Config `json:"database"`
	Redis    redis.Config    `json:"redis"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Dispatch dispatch.Config `json:"dispatch"`
	Intel    intel.Config    `json:"intel"`
	Metrics  metrics.Config  `json:"metrics"`
	API      APIConfig       `json:"api"`
	Notifier NotifierConfig  `json:"notifier"`
}

// APIConfig defines the HTTP listener settings.
type APIConfig struct {
	Addr string `json:"addr"`
	// AuthToken is the bearer token required on every request. Empty
	// disables authentication; only suitable for local development.
	AuthToken string `json:"auth_token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// NotifierConfig selects the offer notification backend.
type NotifierConfig struct {
	// Backend is one of "redis", "mqtt" or "nop".
	Backend string `json:"backend"`
}

// SetDefaults applies sane defaults.
func (c *NotifierConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "redis"
	}
}

// Validate checks mandatory fields.
func (c NotifierConfig) Validate() error {
	switch c.Backend {
	case "redis", "mqtt", "nop":
		return nil
	default:
		return fmt.Errorf("unknown notifier backend %s", c.Backend)
	}
}

// Load reads the file at path, applies HC_ environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("HC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "hc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Database.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Intel.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Notifier.SetDefaults()
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifier.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
