package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all PageLens configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Provider  ProviderConfig  `yaml:"provider"`
	History   HistoryConfig   `yaml:"history"`
	Content   ContentConfig   `yaml:"content"`
}

// AuthConfig controls API key authentication. An empty key list disables
// authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CacheConfig controls the analysis result cache. A zero SweepInterval
// disables the background sweeper; expired entries are still dropped lazily
// on lookup.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RateLimitConfig controls fixed-window admission of backend analysis calls.
// Scope is "global" (one shared window) or "per_key" (one window per API key).
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Scope   string        `yaml:"scope"`
}

// ProviderConfig defines the analysis backend.
// Kind is "openai", "anthropic", or "simulated" (default).
type ProviderConfig struct {
	Kind      string        `yaml:"kind"`
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// HistoryConfig controls analysis history persistence.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// ContentConfig bounds submitted page content.
type ContentConfig struct {
	MaxTextBytes int `yaml:"max_text_bytes"`
}

// Rate limit scopes.
const (
	ScopeGlobal = "global"
	ScopePerKey = "per_key"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8471",
		DBPath: "pagelens.db",
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   10,
			Window:  time.Minute,
			Scope:   ScopeGlobal,
		},
		Provider: ProviderConfig{
			Kind:      "simulated",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Content: ContentConfig{
			MaxTextBytes: 256 * 1024,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	switch c.RateLimit.Scope {
	case "", ScopeGlobal, ScopePerKey:
	default:
		return fmt.Errorf("rate_limit.scope %q: must be %q or %q", c.RateLimit.Scope, ScopeGlobal, ScopePerKey)
	}
	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	switch c.Provider.Kind {
	case "openai", "anthropic", "simulated":
	default:
		return fmt.Errorf("provider.kind %q: must be openai, anthropic, or simulated", c.Provider.Kind)
	}
	return nil
}
