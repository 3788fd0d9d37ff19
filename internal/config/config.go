package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/pushrelay/internal/core"
	"github.com/spf13/viper"
)

// Known notifier types
const (
	NotifierPushover = "pushover"
	NotifierWebhook  = "webhook"
	NotifierTelegram = "telegram"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
	Channels  map[string]ChannelConfig  `mapstructure:"channels"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifierConfig holds one provider integration. Settings are the
// integration-wide module settings, e.g. the Pushover api_token.
type NotifierConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	BaseURL  string            `mapstructure:"base_url"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Settings map[string]string `mapstructure:"settings"`
	Params   map[string]any    `mapstructure:"params"`
}

// ChannelConfig binds per-recipient settings to a notifier.
type ChannelConfig struct {
	Notifier string            `mapstructure:"notifier"`
	Settings map[string]string `mapstructure:"settings"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix("PUSHRELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Notifiers: map[string]NotifierConfig{},
		Channels:  map[string]ChannelConfig{},
	}
}

// EnabledNotifiers returns the names of enabled notifiers in sorted order.
func (c *Config) EnabledNotifiers() []string {
	names := make([]string, 0, len(c.Notifiers))
	for name, n := range c.Notifiers {
		if n.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		if n.Timeout < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("notifier %s: timeout cannot be negative", name))
		}
		switch name {
		case NotifierPushover:
			if strings.TrimSpace(n.Settings["api_token"]) == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("pushover api_token required when pushover is enabled"))
			}
		case NotifierWebhook:
			if strings.TrimSpace(n.Settings["url"]) == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("webhook url required when webhook is enabled"))
			}
		case NotifierTelegram:
			if strings.TrimSpace(n.Settings["bot_token"]) == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("telegram bot_token required when telegram is enabled"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown notifier %q", name))
		}
	}

	for name, ch := range c.Channels {
		n, ok := c.Notifiers[ch.Notifier]
		if !ok || !n.Enabled {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("channel %s references notifier %q which is not enabled", name, ch.Notifier))
		}
	}

	return nil
}
