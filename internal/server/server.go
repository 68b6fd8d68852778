package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/user/gh-trending-go/internal/config"
	"github.com/user/gh-trending-go/internal/crawler"
)

var (
	crawlDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gh_trending_crawl_duration_seconds",
		Help:    "Duration of crawl operations in seconds",
		Buckets: prometheus.DefBuckets,
	})

	crawlErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gh_trending_crawl_errors_total",
		Help: "Total number of failed crawls by kind",
	}, []string{"kind"})

	cacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gh_trending_cache_total",
		Help: "Result cache lookups by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(crawlDurationSeconds)
	prometheus.MustRegister(crawlErrorsTotal)
	prometheus.MustRegister(cacheHitsTotal)
}

// Server exposes the crawler through an HTTP API. Caching of crawl results
// and global rate limiting toward the upstream both live here, above the
// crawler, which stays stateless per crawl.
type Server struct {
	crawler   crawler.Crawler
	cache     *resultCache
	limiter   *rate.Limiter
	server    *http.Server
	startTime time.Time
}

// NewServer creates a server around the given crawler.
func NewServer(cfg *config.ServerConfig, c crawler.Crawler) *Server {
	s := &Server{
		crawler:   c,
		cache:     newResultCache(cfg.CacheTTL),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		startTime: time.Now(),
	}

	s.server = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening on the specified port.
func (s *Server) Start(port int) error {
	s.server.Addr = fmt.Sprintf(":%d", port)
	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// GetUptime returns the server uptime.
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
