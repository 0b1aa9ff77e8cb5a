package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8888 {
		t.Errorf("port: got %d, want 8888", cfg.Port)
	}
	if cfg.SessionTimeout != 3600*time.Second {
		t.Errorf("session timeout: got %v, want 1h", cfg.SessionTimeout)
	}
	if cfg.DBPath != "parley.db" {
		t.Errorf("db path: got %q", cfg.DBPath)
	}
	if cfg.APIAddr != "" || cfg.TLS {
		t.Errorf("api/tls should default off: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PARLEY_PORT", "9000")
	t.Setenv("PARLEY_SESSION_TIMEOUT", "90s")
	t.Setenv("PARLEY_DB", "/tmp/chat.db")
	t.Setenv("PARLEY_API_ADDR", ":8081")
	t.Setenv("PARLEY_TLS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port: got %d, want 9000", cfg.Port)
	}
	if cfg.SessionTimeout != 90*time.Second {
		t.Errorf("session timeout: got %v, want 90s", cfg.SessionTimeout)
	}
	if cfg.DBPath != "/tmp/chat.db" {
		t.Errorf("db path: got %q", cfg.DBPath)
	}
	if cfg.APIAddr != ":8081" || !cfg.TLS {
		t.Errorf("api/tls: %+v", cfg)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PARLEY_PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected an error for a malformed port")
	}
}
