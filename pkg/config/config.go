// Package config loads the iptools CLI configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openip/iptools/pkg/cache"
)

// Duration wraps time.Duration so YAML values like "12h" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the CLI configuration.
type Config struct {
	// CacheDir is the cache root directory.
	CacheDir string `yaml:"cache_dir"`

	// TTL overrides header-driven cache expiry for all clients.
	TTL Duration `yaml:"ttl"`

	// MaxRetries is the request attempt budget.
	MaxRetries int `yaml:"max_retries"`

	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`

	// LogPretty enables human-readable console logging.
	LogPretty bool `yaml:"log_pretty"`

	// Services maps API family names to per-service overrides.
	Services map[string]ServiceConfig `yaml:"services"`
}

// ServiceConfig holds per-API-family overrides.
type ServiceConfig struct {
	// BaseURL overrides the service's default API root.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against services that require one.
	APIKey string `yaml:"api_key"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		CacheDir:   cache.DefaultCacheDir(),
		MaxRetries: 4,
		LogLevel:   "info",
	}
}

// Load reads a YAML config file over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = cache.DefaultCacheDir()
	}
	return cfg, nil
}

// Service returns the override block for an API family, or a zero
// value when none is configured.
func (c *Config) Service(name string) ServiceConfig {
	return c.Services[name]
}
