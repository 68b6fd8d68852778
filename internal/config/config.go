package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Crawler CrawlerConfig
	Server  ServerConfig
	Log     LogConfig
}

// CrawlerConfig holds crawler configuration
type CrawlerConfig struct {
	BaseURL           string        `envconfig:"CRAWLER_BASE_URL" default:"https://github.com"`
	Timeout           time.Duration `envconfig:"CRAWLER_TIMEOUT" default:"30s"`
	MaxRetries        int           `envconfig:"CRAWLER_MAX_RETRIES" default:"3"`
	BackoffBase       time.Duration `envconfig:"CRAWLER_BACKOFF_BASE" default:"5s"`
	BackoffMax        time.Duration `envconfig:"CRAWLER_BACKOFF_MAX" default:"60s"`
	BackoffMultiplier float64       `envconfig:"CRAWLER_BACKOFF_MULTIPLIER" default:"2.0"`
	MinDelay          time.Duration `envconfig:"CRAWLER_MIN_DELAY" default:"1s"`
	MaxDelay          time.Duration `envconfig:"CRAWLER_MAX_DELAY" default:"3s"`
	UserAgents        []string      `envconfig:"CRAWLER_USER_AGENTS"`
	ProxyURL          string        `envconfig:"CRAWLER_PROXY_URL"`
	BrowserFallback   bool          `envconfig:"CRAWLER_BROWSER_FALLBACK" default:"false"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      int           `envconfig:"SERVER_PORT" default:"8080"`
	CacheTTL  time.Duration `envconfig:"SERVER_CACHE_TTL" default:"1h"`
	RateLimit float64       `envconfig:"SERVER_RATE_LIMIT" default:"1"`
	RateBurst int           `envconfig:"SERVER_RATE_BURST" default:"2"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Crawler); err != nil {
		return nil, fmt.Errorf("failed to load crawler config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("CRAWLER_BASE_URL is required")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("CRAWLER_TIMEOUT must be positive")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("CRAWLER_MAX_RETRIES must not be negative")
	}
	if c.Crawler.BackoffBase <= 0 {
		return fmt.Errorf("CRAWLER_BACKOFF_BASE must be positive")
	}
	if c.Crawler.BackoffMax < c.Crawler.BackoffBase {
		return fmt.Errorf("CRAWLER_BACKOFF_MAX must be at least CRAWLER_BACKOFF_BASE")
	}
	if c.Crawler.BackoffMultiplier < 1 {
		return fmt.Errorf("CRAWLER_BACKOFF_MULTIPLIER must be at least 1")
	}
	if c.Crawler.MinDelay < 0 || c.Crawler.MaxDelay < c.Crawler.MinDelay {
		return fmt.Errorf("CRAWLER_MIN_DELAY/CRAWLER_MAX_DELAY must satisfy 0 <= min <= max")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT must be positive")
	}
	return nil
}
