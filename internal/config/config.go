// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Sourcegraph struct {
		URL         string `mapstructure:"url"`
		AccessToken string `mapstructure:"access_token"`
		// PublicOnly marks a deployment that only mirrors public repositories.
		PublicOnly bool `mapstructure:"public_only"`
		TimeoutSec int  `mapstructure:"timeout_sec"`
	} `mapstructure:"sourcegraph"`

	Cache struct {
		Path            string `mapstructure:"path"` // empty keeps the cache in memory
		Size            int    `mapstructure:"size"`
		CompressMinSize int    `mapstructure:"compress_min_size"`
	} `mapstructure:"cache"`

	Browser struct {
		ControlURL string `mapstructure:"control_url"`
		Headless   bool   `mapstructure:"headless"`
	} `mapstructure:"browser"`

	Host     string `mapstructure:"host"`      // resolver registry entry
	TabWidth int    `mapstructure:"tab_width"` // used by hosts that expand tabs
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
}

// Default values, also used when no config file exists.
var defaults = map[string]any{
	"server.host":             "127.0.0.1",
	"server.port":             3189,
	"sourcegraph.url":         "https://sourcegraph.com",
	"sourcegraph.public_only": true,
	"sourcegraph.timeout_sec": 10,
	"cache.size":              512,
	"cache.compress_min_size": 1024,
	"browser.headless":        true,
	"host":                    "generic",
	"tab_width":               4,
	"log_level":               "info",
}

// New returns a viper instance with defaults and CODEINTEL_ env binding.
func New() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix("codeintel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (yaml or json) when given, otherwise looks for
// codeintel.{yaml,json} in dir. A missing file is not an error.
func Load(v *viper.Viper, path, dir string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codeintel")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return decode(v)
}

// BindFlags lets command-line flags override config keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %q", flag, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", flag, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sourcegraph.URL == "" {
		return fmt.Errorf("sourcegraph.url is required")
	}
	if c.TabWidth < 1 {
		return fmt.Errorf("tab_width must be positive, got %d", c.TabWidth)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	return nil
}

// Addr is the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
