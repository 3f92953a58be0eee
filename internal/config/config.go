// Package config defines all configuration for the spread scanner.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via ROTOM_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Subscriptions []SubscriptionConfig `mapstructure:"subscriptions"`
	Server        ServerConfig         `mapstructure:"server"`
	Logging       LoggingConfig        `mapstructure:"logging"`
}

// SubscriptionConfig is one (exchange, instrument, stream kind) tuple the
// dynamic stream builder requests at startup.
type SubscriptionConfig struct {
	Exchange   string `mapstructure:"exchange"`
	Base       string `mapstructure:"base"`
	Quote      string `mapstructure:"quote"`
	StreamKind string `mapstructure:"stream_kind"`
}

// ServerConfig controls the HTTP facade's listen address.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ROTOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("subscriptions: at least one entry is required")
	}
	for i, s := range c.Subscriptions {
		if s.Exchange == "" {
			return fmt.Errorf("subscriptions[%d].exchange is required", i)
		}
		if s.Base == "" || s.Quote == "" {
			return fmt.Errorf("subscriptions[%d]: base and quote are required", i)
		}
		if s.StreamKind == "" {
			return fmt.Errorf("subscriptions[%d].stream_kind is required", i)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}
