package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig() error: %v", err)
	}
	def := DefaultServerConfig()
	if cfg != def {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, def)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}
}

func TestLoadServerConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := ServerConfig{
		MaxUploadBytes:     1 << 20,
		RateLimitPerMinute: 42,
		RateLimitBurst:     7,
	}
	if err := SaveServerConfig(dir, want); err != nil {
		t.Fatalf("SaveServerConfig() error: %v", err)
	}
	got, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig() error: %v", err)
	}
	if got != want {
		t.Errorf("cfg = %+v, want %+v", got, want)
	}
}

func TestLoadServerConfigFillsMissingKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("rate_limit_per_minute: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig() error: %v", err)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Errorf("rate_limit_per_minute = %d, want 10", cfg.RateLimitPerMinute)
	}
	def := DefaultServerConfig()
	if cfg.MaxUploadBytes != def.MaxUploadBytes {
		t.Errorf("max_upload_bytes = %d, want default %d", cfg.MaxUploadBytes, def.MaxUploadBytes)
	}
	if cfg.RateLimitBurst != def.RateLimitBurst {
		t.Errorf("rate_limit_burst = %d, want default %d", cfg.RateLimitBurst, def.RateLimitBurst)
	}
}
