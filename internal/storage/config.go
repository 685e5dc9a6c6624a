// Package storage handles server configuration persisted next to the data.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the persisted server configuration, stored as
// config.yaml inside the data directory.
type ServerConfig struct {
	// MaxUploadBytes caps the size of a single document upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// RateLimitPerMinute is the sustained per-client request budget.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	// RateLimitBurst is the instantaneous per-client burst allowance.
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// DefaultServerConfig returns the configuration used when no config file
// exists yet.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxUploadBytes:     1 << 30, // 1 GiB
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
	}
}

// LoadServerConfig reads config.yaml from dataDir, writing one with
// defaults when absent. Missing keys fall back to their defaults.
func LoadServerConfig(dataDir string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	path := filepath.Join(dataDir, "config.yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := SaveServerConfig(dataDir, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	def := DefaultServerConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = def.RateLimitBurst
	}
	return cfg, nil
}

// SaveServerConfig writes the configuration to config.yaml in dataDir.
func SaveServerConfig(dataDir string, cfg ServerConfig) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dataDir, "config.yaml"), raw, 0o644); err != nil { //nolint:gosec // G306: config holds no secrets
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
