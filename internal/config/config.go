// Package config loads Embergate's configuration: the HTTP listen
// address, data directory, per-call timeout, and the list of
// LaunchServer backends to multiplex. Values come from defaults, a
// YAML file, and environment overrides under an EMBERGATE_ prefix.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// BackendConfig is one configured LaunchServer backend.
type BackendConfig struct {
	Name   string   `mapstructure:"name" yaml:"name"`
	URL    string   `mapstructure:"url" yaml:"url"`
	Token  string   `mapstructure:"token" yaml:"token"`
	Assets []string `mapstructure:"assets" yaml:"assets"`
}

// Config is Embergate's full runtime configuration.
type Config struct {
	ListenAddr            string          `mapstructure:"listen_addr" yaml:"listen_addr"`
	DataDir               string          `mapstructure:"data_dir" yaml:"data_dir"`
	CallTimeoutSeconds    int             `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	LogLevel              string          `mapstructure:"log_level" yaml:"log_level"`
	ServerName            string          `mapstructure:"server_name" yaml:"server_name"`
	ImplementationVersion string          `mapstructure:"implementation_version" yaml:"implementation_version"`
	Backends              []BackendConfig `mapstructure:"backends" yaml:"backends"`
}

// Load reads configuration from path (YAML), falling back to defaults
// and environment variables if the file is absent, then validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("listen_addr", ":25566")
	v.SetDefault("data_dir", "data")
	v.SetDefault("call_timeout_seconds", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("server_name", "Embergate")

	v.SetEnvPrefix("EMBERGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"listen_addr", "data_dir", "call_timeout_seconds", "log_level", "server_name", "implementation_version"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			// Tolerated: defaults + env carry the deployment.
		} else {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures required fields are present and creates DataDir if
// missing.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" || b.URL == "" || b.Token == "" {
			return fmt.Errorf("backend entries require name, url and token (got %+v)", b)
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}

	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}

	return nil
}
