package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_PORT", "")
	t.Setenv("LLM_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.App.Addr())
	}
	if cfg.LLM.Enabled() {
		t.Fatalf("llm should be disabled without a key")
	}
	if !cfg.Logger.Development {
		t.Fatalf("expected development logger outside production")
	}
	if cfg.App.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.App.RequestTimeout())
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for default secret in production")
	}
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("OVERDUE_SCAN_INTERVAL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.App.CORSOrigins) != 2 || cfg.App.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.App.CORSOrigins)
	}
	if cfg.Worker.OverdueScanInterval != time.Minute {
		t.Fatalf("unexpected interval %s", cfg.Worker.OverdueScanInterval)
	}
}

func TestRequestTimeoutDisabled(t *testing.T) {
	app := AppConfig{RequestTimeoutSeconds: 0}
	if app.RequestTimeout() != 0 {
		t.Fatalf("expected zero timeout")
	}
}
