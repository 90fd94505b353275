package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("SEND_RATE", "10")
	t.Setenv("PAGE_SIZE", "oops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.AppEnv != "development" || cfg.IsProduction() {
		t.Errorf("AppEnv = %q", cfg.AppEnv)
	}
	if cfg.APITimeout != 5*time.Second {
		t.Errorf("APITimeout = %v", cfg.APITimeout)
	}
	if cfg.SendRate != 10 {
		t.Errorf("SendRate = %v", cfg.SendRate)
	}
	if cfg.PageSize != 15 {
		t.Errorf("PageSize = %d, want default 15", cfg.PageSize)
	}
	if cfg.UseWebhook() {
		t.Error("UseWebhook() без WEBHOOK_URL")
	}
}

func TestLoadRequired(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		apiURL string
		locale string
	}{
		{"no token", "", "https://api", "ru"},
		{"no api url", "t", "", "ru"},
		{"bad locale", "t", "https://api", "de"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", tt.token)
			t.Setenv("API_BASE_URL", tt.apiURL)
			t.Setenv("DEFAULT_LOCALE", tt.locale)
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil")
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"yes", true},
		{"ON", true},
		{"0", false},
		{"maybe", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FLAG", tt.value)
			if got := getEnvBool("FLAG", true); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
