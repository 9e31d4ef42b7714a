package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_BASE_URL", "ENV", "TOKEN_FILE", "HTTP_TIMEOUT_SECONDS",
		"QUEUE_POLL_SECONDS", "SESSION_POLL_SECONDS",
		"DASHBOARD_POLL_SECONDS", "WIZARD_FILE_POLL_SECONDS",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
	if cfg.QueuePollInterval() != 10*time.Second {
		t.Errorf("QueuePollInterval = %v, want 10s", cfg.QueuePollInterval())
	}
	if cfg.SessionPollInterval() != 5*time.Second {
		t.Errorf("SessionPollInterval = %v, want 5s", cfg.SessionPollInterval())
	}
	if cfg.WizardFilePollInterval() != 2*time.Second {
		t.Errorf("WizardFilePollInterval = %v, want 2s", cfg.WizardFilePollInterval())
	}
	if cfg.TokenFile == "" {
		t.Error("TokenFile should have a default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("API_BASE_URL", "https://clinic.example.com")
	os.Setenv("QUEUE_POLL_SECONDS", "3")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBaseURL != "https://clinic.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.QueuePollSeconds != 3 {
		t.Errorf("QueuePollSeconds = %d, want 3", cfg.QueuePollSeconds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.APIBaseURL = "" }, true},
		{"non-http base url", func(c *Config) { c.APIBaseURL = "ftp://x" }, true},
		{"zero timeout", func(c *Config) { c.HTTPTimeoutSeconds = 0 }, true},
		{"negative poll", func(c *Config) { c.SessionPollSeconds = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				APIBaseURL:            "http://localhost:8000",
				HTTPTimeoutSeconds:    30,
				QueuePollSeconds:      10,
				SessionPollSeconds:    5,
				DashboardPollSeconds:  30,
				WizardFilePollSeconds: 2,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
