// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and persists the Opsvault configuration. Configuration
// values are resolved from (in order of precedence) command-line flags,
// environment variables with the OPSVAULT_ prefix, an explicit --config file,
// and the standard user/system config locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DatabaseConfig selects the backend for the audit/alert history store.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// VaultConfig locates the encrypted credential store on disk.
type VaultConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RateLimitConfig locates the persistent token bucket state.
type RateLimitConfig struct {
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// EmailChannelConfig configures the SMTP alert channel.
type EmailChannelConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Host     string   `mapstructure:"host" yaml:"host"`
	Port     int      `mapstructure:"port" yaml:"port"`
	From     string   `mapstructure:"from" yaml:"from"`
	To       []string `mapstructure:"to" yaml:"to"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
}

// SMSChannelConfig configures the webhook-based SMS alert channel.
type SMSChannelConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	To         string `mapstructure:"to" yaml:"to"`
}

// MetricsChannelConfig configures the metrics/log alert channel.
type MetricsChannelConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AlertsConfig groups the notifier settings.
type AlertsConfig struct {
	LogDir  string               `mapstructure:"log_dir" yaml:"log_dir"`
	Email   EmailChannelConfig   `mapstructure:"email" yaml:"email"`
	SMS     SMSChannelConfig     `mapstructure:"sms" yaml:"sms"`
	Metrics MetricsChannelConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Config is the root configuration for the Opsvault CLI.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Vault     VaultConfig     `mapstructure:"vault" yaml:"vault"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Alerts    AlertsConfig    `mapstructure:"alerts" yaml:"alerts"`
	Language  string          `mapstructure:"language" yaml:"language"`
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Opsvault")
		default: // Linux, macOS, etc.
			configDir = "/etc/opsvault"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "opsvault")
	}

	return filepath.Join(configDir, "opsvault.yaml"), nil
}

// DefaultDataDir returns the per-user directory holding the vault, the rate
// limit state and the alert logs when no explicit paths are configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opsvault"
	}
	return filepath.Join(home, ".opsvault")
}

// LoadConfig resolves the configuration for the given command. Defaults are
// applied first, then config files, environment and finally flags.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("opsvault")
	v.SetConfigType("yaml")

	// An explicit --config flag has the highest precedence for file-based
	// configuration.
	if additionalConfigFilePath != nil {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the defaults carry the day.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("opsvault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteConfigFile persists the configuration as YAML to the standard user or
// system config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600 because the alert channel settings may contain SMTP credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
