package crawler

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/gh-trending-go/internal/model"
)

// newTestCrawler points a crawler with fast retries at the given upstream.
func newTestCrawler(t *testing.T, baseURL string) *TrendingCrawler {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = 1
	cfg.Timeout = time.Second

	agents := NewUserAgentPoolWithRand([]string{"test-agent"}, rand.New(rand.NewSource(1)))
	delays := NewDelayPolicyWithRand(0, 0, time.Millisecond, 10*time.Millisecond, 2.0,
		rand.New(rand.NewSource(1)))
	fetcher, err := NewPageFetcher(cfg, agents, delays)
	if err != nil {
		t.Fatalf("NewPageFetcher failed: %v", err)
	}

	return NewWithParts(cfg, fetcher, NewParser(baseURL))
}

func TestBuildURL(t *testing.T) {
	c := newTestCrawler(t, "https://github.com")

	tests := []struct {
		name string
		req  model.CrawlRequest
		want string
	}{
		{
			name: "no language filter omits the path segment",
			req:  model.CrawlRequest{Since: model.SinceDaily},
			want: "https://github.com/trending?since=daily",
		},
		{
			name: "language filter becomes a path segment",
			req:  model.CrawlRequest{Language: "go", Since: model.SinceWeekly},
			want: "https://github.com/trending/go?since=weekly",
		},
		{
			name: "language is lowercased",
			req:  model.CrawlRequest{Language: "Rust", Since: model.SinceMonthly},
			want: "https://github.com/trending/rust?since=monthly",
		},
		{
			name: "language is path escaped",
			req:  model.CrawlRequest{Language: "c++", Since: model.SinceDaily},
			want: "https://github.com/trending/c++?since=daily",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.BuildURL(tt.req); got != tt.want {
				t.Errorf("BuildURL(%+v) = %q, want %q", tt.req, got, tt.want)
			}
		})
	}
}

func TestCrawl_Success(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write(trendingPage(
			repoEntry("rust", "foo", "a fast thing", "Rust", "120", "10", "30 stars this week"),
			repoEntry("rust", "bar", "a slow thing", "Rust", "5,000", "400", "0 stars this week"),
		).Body)
	}))
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	result, err := c.Crawl(context.Background(), model.CrawlRequest{Language: "rust", Since: model.SinceWeekly})
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	if gotPath != "/trending/rust" {
		t.Errorf("request path = %q, want /trending/rust", gotPath)
	}
	if gotQuery != "since=weekly" {
		t.Errorf("request query = %q, want since=weekly", gotQuery)
	}

	if len(result.Repos) != 2 {
		t.Fatalf("got %d repos, want 2", len(result.Repos))
	}
	if result.Repos[0].FullName != "rust/foo" || result.Repos[1].FullName != "rust/bar" {
		t.Errorf("order = [%s, %s], want [rust/foo, rust/bar]",
			result.Repos[0].FullName, result.Repos[1].FullName)
	}
	if result.Repos[1].StarsInPeriod != 0 {
		t.Errorf("rust/bar StarsInPeriod = %d, want 0 preserved", result.Repos[1].StarsInPeriod)
	}
	if result.SourceURL != srv.URL+"/trending/rust?since=weekly" {
		t.Errorf("SourceURL = %q", result.SourceURL)
	}
	if result.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestCrawl_DefaultsSinceToDaily(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(trendingPage(repoEntry("o", "r", "", "Go", "1", "1", "")).Body)
	}))
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	if _, err := c.Crawl(context.Background(), model.CrawlRequest{}); err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if gotQuery != "since=daily" {
		t.Errorf("query = %q, want since=daily", gotQuery)
	}
}

func TestCrawl_InvalidSinceRejected(t *testing.T) {
	c := newTestCrawler(t, "http://127.0.0.1:0")

	_, err := c.Crawl(context.Background(), model.CrawlRequest{Since: "hourly"})
	if err == nil {
		t.Fatal("Crawl accepted an invalid since value")
	}
	if CrawlKindOf(err) != "" {
		t.Errorf("validation failure classified as crawl error kind %q", CrawlKindOf(err))
	}
}

func TestCrawl_MapsRateLimitedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	_, err := c.Crawl(context.Background(), model.CrawlRequest{Since: model.SinceDaily})

	if kind := CrawlKindOf(err); kind != CrawlRateLimited {
		t.Errorf("kind = %q, want %q (err: %v)", kind, CrawlRateLimited, err)
	}
}

func TestCrawl_MapsUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	_, err := c.Crawl(context.Background(), model.CrawlRequest{Language: "no-such-language", Since: model.SinceDaily})

	if kind := CrawlKindOf(err); kind != CrawlUpstreamRejected {
		t.Fatalf("kind = %q, want %q (err: %v)", kind, CrawlUpstreamRejected, err)
	}

	var ce *CrawlError
	if !errors.As(err, &ce) || ce.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode not carried through, err: %v", err)
	}
}

func TestCrawl_MapsParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A real-sized page with none of the expected entry structure.
		w.Write([]byte(`<html><body>` + bigBody + `</body></html>`))
	}))
	defer srv.Close()

	c := newTestCrawler(t, srv.URL)
	_, err := c.Crawl(context.Background(), model.CrawlRequest{Since: model.SinceDaily})

	if kind := CrawlKindOf(err); kind != CrawlParseFailed {
		t.Errorf("kind = %q, want %q (err: %v)", kind, CrawlParseFailed, err)
	}
}

func TestCrawl_TimeoutExhaustionIsRateLimited(t *testing.T) {
	// Every attempt times out against a hanging upstream while the caller's
	// context stays alive: that is an unreachable upstream, not a
	// cancellation.
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newTestCrawler(t, srv.URL)
	c.config.Timeout = 50 * time.Millisecond

	_, err := c.Crawl(context.Background(), model.CrawlRequest{Since: model.SinceDaily})

	if kind := CrawlKindOf(err); kind != CrawlRateLimited {
		t.Fatalf("kind = %q, want %q (err: %v)", kind, CrawlRateLimited, err)
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("FetchError not in chain: %v", err)
	}
	if fe.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", fe.Attempts)
	}
}

func TestCrawl_CancelledMidRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 3
	cfg.Timeout = time.Second

	agents := NewUserAgentPoolWithRand([]string{"test-agent"}, rand.New(rand.NewSource(1)))
	delays := NewDelayPolicyWithRand(0, 0, 10*time.Second, time.Minute, 2.0,
		rand.New(rand.NewSource(1)))
	fetcher, err := NewPageFetcher(cfg, agents, delays)
	if err != nil {
		t.Fatalf("NewPageFetcher failed: %v", err)
	}
	c := NewWithParts(cfg, fetcher, NewParser(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := c.Crawl(ctx, model.CrawlRequest{Since: model.SinceDaily})
	elapsed := time.Since(start)

	if kind := CrawlKindOf(err); kind != CrawlCancelled {
		t.Fatalf("kind = %q, want %q (err: %v)", kind, CrawlCancelled, err)
	}
	if result != nil {
		t.Error("cancelled crawl returned a partial result")
	}
	if elapsed > 2*time.Second {
		t.Errorf("cancellation took %v to propagate", elapsed)
	}
}
