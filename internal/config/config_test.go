package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  db: 2
  ttl: 1h
postgres:
  url: "postgres://quiz@localhost/quizdb"
api:
  baseUrl: "https://lms.example.com"
  timeout: 5s
quiz:
  cacheTtl: 15m
  fallback: true
  sweepInterval: 2m
  idleTimeout: 45m
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port mismatch: %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis mismatch: %+v", cfg.Redis)
	}
	if cfg.API.BaseURL != "https://lms.example.com" {
		t.Fatalf("api mismatch: %+v", cfg.API)
	}
	if !cfg.Quiz.Fallback || cfg.Quiz.CacheTTL != "15m" {
		t.Fatalf("quiz mismatch: %+v", cfg.Quiz)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("30m", time.Hour); d != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", d)
	}
	if d := TTLDuration("", time.Hour); d != time.Hour {
		t.Fatalf("expected fallback for empty, got %v", d)
	}
	if d := TTLDuration("garbage", time.Hour); d != time.Hour {
		t.Fatalf("expected fallback for malformed, got %v", d)
	}
}
