package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/gh-trending-go/internal/model"
)

const trendingPath = "/trending"

// TrendingCrawler composes the fetcher and parser into one crawl pipeline:
// build URL, fetch (with retries inside the fetcher), parse, wrap with
// metadata. It adds no retries of its own and keeps no state across crawls,
// so any number of crawls may run concurrently.
type TrendingCrawler struct {
	config  *Config
	fetcher *PageFetcher
	parser  *Parser

	browser   *Browser
	browserMu sync.Mutex
}

// New creates a TrendingCrawler from the config, wiring up the UA pool,
// delay policy, fetcher and parser.
func New(cfg *Config) (*TrendingCrawler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	agents := NewUserAgentPool(cfg.UserAgents)
	delays := NewDelayPolicy(cfg.MinDelay, cfg.MaxDelay, cfg.BackoffBase, cfg.BackoffMax, cfg.BackoffMultiplier)

	fetcher, err := NewPageFetcher(cfg, agents, delays)
	if err != nil {
		return nil, err
	}

	return &TrendingCrawler{
		config:  cfg,
		fetcher: fetcher,
		parser:  NewParser(cfg.BaseURL),
	}, nil
}

// NewWithParts creates a TrendingCrawler from pre-built components, used by
// tests to inject deterministic delay policies and single-entry UA pools.
func NewWithParts(cfg *Config, fetcher *PageFetcher, parser *Parser) *TrendingCrawler {
	return &TrendingCrawler{config: cfg, fetcher: fetcher, parser: parser}
}

// BuildURL composes the trending page URL for a request. The language path
// segment is omitted entirely when the filter is empty.
func (c *TrendingCrawler) BuildURL(req model.CrawlRequest) string {
	u := strings.TrimSuffix(c.config.BaseURL, "/") + trendingPath
	if req.Language != "" {
		u += "/" + url.PathEscape(strings.ToLower(req.Language))
	}
	return u + "?since=" + string(req.Since)
}

// Crawl runs one fetch-and-parse pipeline. Failures come back as *CrawlError
// with a kind distinguishing rate limiting, upstream rejection, markup drift
// and caller cancellation; a fetch or parse failure is never masked as an
// empty success.
func (c *TrendingCrawler) Crawl(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error) {
	since, err := model.ParseSince(string(req.Since))
	if err != nil {
		return nil, fmt.Errorf("invalid crawl request: %w", err)
	}
	req.Since = since

	sourceURL := c.BuildURL(req)
	log.Info().Str("url", sourceURL).Str("language", req.Language).Str("since", string(req.Since)).Msg("Crawling trending page")

	page, err := c.fetcher.Fetch(ctx, sourceURL, c.config.Timeout)
	if err != nil {
		// Only the caller's context decides cancellation. A per-attempt
		// timeout also surfaces context.DeadlineExceeded in the chain, but
		// that is a retryable upstream condition, not an abort.
		if ctx.Err() != nil {
			return nil, &CrawlError{Kind: CrawlCancelled, Err: err}
		}

		var fe *FetchError
		if errors.As(err, &fe) {
			if fe.Kind == FetchRateLimitedOrUnreachable && c.config.BrowserFallback {
				result, berr := c.crawlWithBrowser(ctx, sourceURL)
				if berr == nil {
					return result, nil
				}
				log.Warn().Err(berr).Msg("Browser fallback failed")
			}
			switch fe.Kind {
			case FetchUpstreamRejected:
				return nil, &CrawlError{Kind: CrawlUpstreamRejected, StatusCode: fe.StatusCode, Err: err}
			default:
				return nil, &CrawlError{Kind: CrawlRateLimited, StatusCode: fe.StatusCode, Err: err}
			}
		}
		return nil, &CrawlError{Kind: CrawlRateLimited, Err: err}
	}

	repos, err := c.parser.Parse(page)
	if err != nil {
		return nil, &CrawlError{Kind: CrawlParseFailed, Err: err}
	}

	log.Info().Int("count", len(repos)).Str("url", sourceURL).Msg("Crawl completed")
	return &model.CrawlResult{
		Repos:     repos,
		SourceURL: sourceURL,
		FetchedAt: page.FetchedAt,
	}, nil
}

// crawlWithBrowser retries a blocked fetch through the headless browser and
// parses the rendered document.
func (c *TrendingCrawler) crawlWithBrowser(ctx context.Context, sourceURL string) (*model.CrawlResult, error) {
	browser, err := c.getBrowser()
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", sourceURL).Msg("Retrying blocked fetch through headless browser")
	html, err := browser.FetchRenderedHTML(ctx, sourceURL, "article.Box-row")
	if err != nil {
		return nil, err
	}

	page := &RawPage{
		Body:       []byte(html),
		StatusCode: 200,
		URL:        sourceURL,
		FetchedAt:  time.Now().UTC(),
	}
	repos, err := c.parser.Parse(page)
	if err != nil {
		return nil, err
	}

	return &model.CrawlResult{Repos: repos, SourceURL: sourceURL, FetchedAt: page.FetchedAt}, nil
}

// getBrowser lazily launches the headless browser on first use.
func (c *TrendingCrawler) getBrowser() (*Browser, error) {
	c.browserMu.Lock()
	defer c.browserMu.Unlock()

	if c.browser == nil {
		browser, err := NewBrowser(c.config.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		c.browser = browser
	}
	return c.browser, nil
}

// Close releases crawler resources, including any launched browser.
func (c *TrendingCrawler) Close() error {
	c.browserMu.Lock()
	defer c.browserMu.Unlock()

	if c.browser != nil {
		return c.browser.Close()
	}
	return nil
}
