package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// browserWaitTimeout bounds waiting for the entry selector to appear.
	browserWaitTimeout = 15 * time.Second
	// browserPageLoadTimeout bounds the full page load.
	browserPageLoadTimeout = 30 * time.Second
)

// Browser wraps a headless rod browser used as a last-resort fetch path when
// plain HTTP requests keep getting blocked. The instance is reused across
// fallbacks and launched lazily by the crawler.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	mu       sync.Mutex
	closed   bool
}

// NewBrowser launches a headless browser, optionally through a proxy.
func NewBrowser(proxyURL string) (*Browser, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("mute-audio").
		Set("no-first-run")

	if proxyURL != "" {
		l = l.Proxy(proxyURL)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{browser: browser, launcher: l}, nil
}

// FetchRenderedHTML navigates to url and returns the rendered document.
// waitSelector, when non-empty, is awaited up to browserWaitTimeout; a miss
// is not fatal since the page may still carry usable content.
func (b *Browser) FetchRenderedHTML(ctx context.Context, url string, waitSelector string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("browser is closed")
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page = page.Timeout(browserPageLoadTimeout)

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}

	if waitSelector != "" {
		waitCtx, cancel := context.WithTimeout(ctx, browserWaitTimeout)
		defer cancel()

		if _, err := page.Context(waitCtx).Element(waitSelector); err != nil {
			// Selector not found within the timeout; the page may still
			// have usable content, so continue.
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Close shuts down the browser and cleans up the launcher.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close browser: %w", err)
		}
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return firstErr
}
