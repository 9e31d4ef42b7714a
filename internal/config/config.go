package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL         string `mapstructure:"API_BASE_URL"`
	Env                string `mapstructure:"ENV"`
	TokenFile          string `mapstructure:"TOKEN_FILE"`
	HTTPTimeoutSeconds int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	// Polling intervals, in seconds. Queue-style listings use the queue
	// interval; a single session under review or VLM processing uses the
	// session interval.
	QueuePollSeconds      int `mapstructure:"QUEUE_POLL_SECONDS"`
	SessionPollSeconds    int `mapstructure:"SESSION_POLL_SECONDS"`
	DashboardPollSeconds  int `mapstructure:"DASHBOARD_POLL_SECONDS"`
	WizardFilePollSeconds int `mapstructure:"WIZARD_FILE_POLL_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("TOKEN_FILE", defaultTokenFile())
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("QUEUE_POLL_SECONDS", 10)
	v.SetDefault("SESSION_POLL_SECONDS", 5)
	v.SetDefault("DASHBOARD_POLL_SECONDS", 30)
	v.SetDefault("WIZARD_FILE_POLL_SECONDS", 2)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("API_BASE_URL")
	v.BindEnv("ENV")
	v.BindEnv("TOKEN_FILE")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("QUEUE_POLL_SECONDS")
	v.BindEnv("SESSION_POLL_SECONDS")
	v.BindEnv("DASHBOARD_POLL_SECONDS")
	v.BindEnv("WIZARD_FILE_POLL_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to use.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	for name, secs := range map[string]int{
		"QUEUE_POLL_SECONDS":       c.QueuePollSeconds,
		"SESSION_POLL_SECONDS":     c.SessionPollSeconds,
		"DASHBOARD_POLL_SECONDS":   c.DashboardPollSeconds,
		"WIZARD_FILE_POLL_SECONDS": c.WizardFilePollSeconds,
	} {
		if secs <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, secs)
		}
	}
	return nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.QueuePollSeconds) * time.Second
}

func (c *Config) SessionPollInterval() time.Duration {
	return time.Duration(c.SessionPollSeconds) * time.Second
}

func (c *Config) DashboardPollInterval() time.Duration {
	return time.Duration(c.DashboardPollSeconds) * time.Second
}

func (c *Config) WizardFilePollInterval() time.Duration {
	return time.Duration(c.WizardFilePollSeconds) * time.Second
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".careflow-token"
	}
	return filepath.Join(home, ".careflow", "token")
}
