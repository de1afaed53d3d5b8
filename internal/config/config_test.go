package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AGENT_API_URL", "https://agent.example.com/api/query/")
	t.Setenv("CLIENT_API_URL", "https://clients.example.com")
	t.Setenv("CLIENT_API_URL_DEV", "https://clients-test.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.IncludeChatHistory {
		t.Error("IncludeChatHistory should default to true")
	}
	if cfg.AgentAPIURL != "https://agent.example.com/api/query" {
		t.Errorf("AgentAPIURL trailing slash not trimmed: %q", cfg.AgentAPIURL)
	}
	if cfg.Storage.Backend != StorageSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %v, want 60s", cfg.HTTPTimeout)
	}
	if got := cfg.ClientAPIBase(); got != "https://clients.example.com" {
		t.Errorf("ClientAPIBase() = %q, want production URL", got)
	}
}

func TestLoadDevModeSelectsTestClientAPI(t *testing.T) {
	setRequired(t)
	t.Setenv("DEV_MODE", "yes")
	t.Setenv("DEBUG_QUERIES", "1")
	t.Setenv("INCLUDE_CHAT_HISTORY", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.ClientAPIBase(); got != "https://clients-test.example.com" {
		t.Errorf("ClientAPIBase() = %q, want dev URL", got)
	}
	if !cfg.DebugQueries {
		t.Error("DebugQueries should be enabled")
	}
	if cfg.IncludeChatHistory {
		t.Error("IncludeChatHistory should be disabled")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() should be true in dev mode")
	}
}

func TestLoadRejectsMissingAgentURL(t *testing.T) {
	t.Setenv("AGENT_API_URL", "")
	t.Setenv("CLIENT_API_URL", "https://clients.example.com")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "AGENT_API_URL") {
		t.Fatalf("expected AGENT_API_URL error, got %v", err)
	}
}

func TestLoadRejectsUnknownStorageBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "STORAGE_BACKEND") {
		t.Fatalf("expected STORAGE_BACKEND error, got %v", err)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "90s")
	if got := getEnvDuration("X_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("got %v, want 90s", got)
	}
	t.Setenv("X_DURATION", "15")
	if got := getEnvDuration("X_DURATION", time.Second); got != 15*time.Second {
		t.Errorf("got %v, want 15s", got)
	}
	t.Setenv("X_DURATION", "soon")
	if got := getEnvDuration("X_DURATION", time.Second); got != time.Second {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{FrontendURL: "https://app.example.com/"}
	got := cfg.AllowedOrigins()
	if len(got) != 1 || got[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins() = %v", got)
	}
	cfg.FrontendURL = ""
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("AllowedOrigins() = %v, want wildcard", got)
	}
}

func TestFromEnvSkipsValidation(t *testing.T) {
	t.Setenv("AGENT_API_URL", "")
	t.Setenv("STORAGE_BACKEND", "None")
	t.Setenv("JWT_TOKEN", "env-token")

	cfg := FromEnv()
	if cfg.Storage.Backend != StorageNone {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageNone)
	}
	if cfg.FallbackToken != "env-token" {
		t.Error("FallbackToken should come from JWT_TOKEN")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject a missing AGENT_API_URL")
	}
}
