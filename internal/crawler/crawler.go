package crawler

import (
	"context"
	"time"

	"github.com/user/gh-trending-go/internal/model"
)

// Crawler defines the interface for fetching trending repository data.
type Crawler interface {
	// Crawl fetches and parses one trending page for the given request.
	// It returns either a complete, order-preserved result or a *CrawlError;
	// never a partial record list.
	Crawl(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error)

	// Close releases crawler resources.
	Close() error
}

// Config holds configuration for the crawler. All values are immutable for
// the crawler's lifetime.
type Config struct {
	// BaseURL is the upstream root, e.g. https://github.com
	BaseURL string
	// Timeout bounds each individual fetch attempt; it resets on retry.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt, so a
	// fetch makes at most MaxRetries+1 attempts.
	MaxRetries int
	// BackoffBase is the first retry delay before jitter.
	BackoffBase time.Duration
	// BackoffMax caps the exponential growth of retry delays.
	BackoffMax time.Duration
	// BackoffMultiplier is the per-retry growth factor.
	BackoffMultiplier float64
	// MinDelay and MaxDelay bound the randomized pre-request delay applied
	// before every attempt, including the first.
	MinDelay time.Duration
	MaxDelay time.Duration
	// UserAgents overrides the built-in desktop browser set when non-empty.
	UserAgents []string
	// ProxyURL is the proxy server URL (HTTP or SOCKS5).
	ProxyURL string
	// BrowserFallback enables a headless-browser second chance when the
	// HTTP path ends rate-limited or unreachable.
	BrowserFallback bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://github.com",
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		BackoffBase:       5 * time.Second,
		BackoffMax:        60 * time.Second,
		BackoffMultiplier: 2.0,
		MinDelay:          1 * time.Second,
		MaxDelay:          3 * time.Second,
	}
}
