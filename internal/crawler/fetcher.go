package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// minBodyBytes is the smallest 200 response body accepted as a real page.
// Soft blocks sometimes answer 200 with a near-empty document; those are
// treated as retryable rather than handed to the parser.
const minBodyBytes = 512

// RawPage is the unparsed result of a successful fetch.
type RawPage struct {
	Body       []byte
	StatusCode int
	URL        string
	FetchedAt  time.Time
}

// attemptOutcome classifies one fetch attempt.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	// outcomeRetryable covers 403/429 and connection or timeout errors:
	// conditions that look like rate limiting or transient unreachability.
	outcomeRetryable
	// outcomeTerminal covers every other non-200 status: a structural
	// problem on the upstream side that a retry will not fix.
	outcomeTerminal
)

// PageFetcher issues GET requests with browser-like headers, a rotating
// user agent and a bounded retry loop. Every attempt uses an independently
// chosen UA and a freshly computed pre-request delay; retries sleep an
// exponentially growing jittered backoff. It holds no mutable state across
// requests, so concurrent fetches need no coordination.
type PageFetcher struct {
	client     *http.Client
	agents     *UserAgentPool
	delays     *DelayPolicy
	maxRetries int
}

// NewPageFetcher builds a fetcher from the config plus injected UA pool and
// delay policy.
func NewPageFetcher(cfg *Config, agents *UserAgentPool, delays *DelayPolicy) (*PageFetcher, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &PageFetcher{
		// The per-attempt bound is enforced through a context deadline so
		// that cancellation and timeout flow through the same path.
		client:     &http.Client{Transport: transport},
		agents:     agents,
		delays:     delays,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Fetch retrieves targetURL, retrying retryable failures up to maxRetries
// times. It makes at most maxRetries+1 attempts and never retries after a
// success or a terminal failure. Caller cancellation aborts the pre-request
// delay, the request itself and the backoff sleep, returning ctx.Err()
// wrapped so the orchestrator can map it to a cancelled crawl.
func (f *PageFetcher) Fetch(ctx context.Context, targetURL string, timeout time.Duration) (*RawPage, error) {
	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= f.maxRetries+1; attempt++ {
		if err := sleepCtx(ctx, f.delays.PreRequest()); err != nil {
			return nil, fmt.Errorf("fetch aborted before attempt %d: %w", attempt, err)
		}

		page, status, outcome, err := f.attempt(ctx, targetURL, timeout)
		if outcome == outcomeSuccess {
			if attempt > 1 {
				log.Debug().Int("attempts", attempt).Str("url", targetURL).Msg("Fetch succeeded after retry")
			}
			return page, nil
		}

		// A parent cancellation surfaces as a request error; it must not
		// be mistaken for a retryable timeout.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch aborted during attempt %d: %w", attempt, ctx.Err())
		}

		lastErr = err
		lastStatus = status

		if outcome == outcomeTerminal {
			log.Warn().Int("status", status).Str("url", targetURL).Msg("Upstream rejected request, not retrying")
			return nil, &FetchError{
				Kind:       FetchUpstreamRejected,
				StatusCode: status,
				Attempts:   attempt,
				Err:        err,
			}
		}

		if attempt <= f.maxRetries {
			backoff := f.delays.Backoff(attempt)
			log.Debug().
				Int("attempt", attempt).
				Int("max_retries", f.maxRetries).
				Dur("backoff", backoff).
				Err(err).
				Msg("Retryable fetch failure, backing off")
			if serr := sleepCtx(ctx, backoff); serr != nil {
				return nil, fmt.Errorf("fetch aborted during backoff after attempt %d: %w", attempt, serr)
			}
		}
	}

	log.Warn().Int("attempts", f.maxRetries+1).Str("url", targetURL).Err(lastErr).Msg("Fetch retries exhausted")
	return nil, &FetchError{
		Kind:       FetchRateLimitedOrUnreachable,
		StatusCode: lastStatus,
		Attempts:   f.maxRetries + 1,
		Err:        lastErr,
	}
}

// attempt performs a single GET and classifies the result.
func (f *PageFetcher) attempt(ctx context.Context, targetURL string, timeout time.Duration) (*RawPage, int, attemptOutcome, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, 0, outcomeTerminal, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all retryable.
		return nil, 0, outcomeRetryable, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Int("status", resp.StatusCode).Str("url", targetURL).Msg("HTTP response")

	switch {
	case resp.StatusCode == http.StatusOK:
		body, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return nil, resp.StatusCode, outcomeRetryable, fmt.Errorf("read body: %w", rerr)
		}
		if len(body) < minBodyBytes {
			return nil, resp.StatusCode, outcomeRetryable, fmt.Errorf("suspiciously small body (%d bytes)", len(body))
		}
		return &RawPage{
			Body:       body,
			StatusCode: resp.StatusCode,
			URL:        targetURL,
			FetchedAt:  time.Now().UTC(),
		}, resp.StatusCode, outcomeSuccess, nil

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, outcomeRetryable, fmt.Errorf("HTTP status %d", resp.StatusCode)

	default:
		return nil, resp.StatusCode, outcomeTerminal, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
