package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/user/gh-trending-go/internal/crawler"
	"github.com/user/gh-trending-go/internal/model"
)

const (
	defaultLimit = 25
	maxLimit     = 100

	// statusClientClosedRequest is nginx's 499: the client went away before
	// the response was ready. net/http defines no constant for it.
	statusClientClosedRequest = 499
)

// supportedLanguages is the language filter vocabulary advertised to clients.
var supportedLanguages = []string{
	"python", "javascript", "java", "typescript", "c++", "c", "c#",
	"go", "rust", "php", "ruby", "swift", "kotlin", "dart", "scala",
	"r", "matlab", "shell", "powershell", "html", "css", "vue",
}

// TrendingResponse wraps a crawl result for API clients.
type TrendingResponse struct {
	Success      bool                 `json:"success"`
	Repositories []model.TrendingRepo `json:"repositories"`
	TotalCount   int                  `json:"total_count"`
	Language     string               `json:"language,omitempty"`
	Since        model.Since          `json:"since"`
	SourceURL    string               `json:"source_url"`
	CrawledAt    time.Time            `json:"crawled_at"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// routes configures the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/trending", func(r chi.Router) {
		r.Get("/", s.handleTrending)
		r.Get("/languages/supported", s.handleSupportedLanguages)
		r.Get("/{language}", s.handleTrendingByLanguage)
	})

	return r
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Uptime: s.GetUptime().Round(time.Second).String(),
	})
}

// handleSupportedLanguages handles GET /api/trending/languages/supported.
func (s *Server) handleSupportedLanguages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, supportedLanguages)
}

// handleTrending handles GET /api/trending?language=&since=&limit=.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	s.serveTrending(w, r, r.URL.Query().Get("language"))
}

// handleTrendingByLanguage handles GET /api/trending/{language}.
func (s *Server) handleTrendingByLanguage(w http.ResponseWriter, r *http.Request) {
	s.serveTrending(w, r, chi.URLParam(r, "language"))
}

// serveTrending validates the query, runs (or reuses) a crawl and writes the
// response. Pagination and validation live here; the crawler only ever sees
// a well-formed request.
func (s *Server) serveTrending(w http.ResponseWriter, r *http.Request, language string) {
	since, err := model.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_since", err.Error())
		return
	}

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxLimit {
			respondError(w, http.StatusBadRequest, "invalid_limit",
				"limit must be an integer between 1 and 100")
			return
		}
	}

	req := model.CrawlRequest{Language: language, Since: since}

	result, ok := s.cache.get(req)
	if ok {
		cacheHitsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheHitsTotal.WithLabelValues("miss").Inc()

		// Global request pacing toward the upstream, shared by all
		// concurrent API calls.
		if err := s.limiter.Wait(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "rate_limited",
				"request cancelled while waiting for upstream rate limit")
			return
		}

		start := time.Now()
		result, err = s.crawler.Crawl(r.Context(), req)
		crawlDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			s.respondCrawlError(w, err)
			return
		}
		s.cache.set(req, result)
	}

	repos := result.Repos
	if len(repos) > limit {
		repos = repos[:limit]
	}

	respondJSON(w, http.StatusOK, TrendingResponse{
		Success:      true,
		Repositories: repos,
		TotalCount:   len(repos),
		Language:     language,
		Since:        since,
		SourceURL:    result.SourceURL,
		CrawledAt:    result.FetchedAt,
	})
}

// respondCrawlError maps the crawl error taxonomy onto distinct client-facing
// statuses: rate limited upstream, upstream rejection, markup drift and
// caller cancellation each get their own status rather than one generic 500.
func (s *Server) respondCrawlError(w http.ResponseWriter, err error) {
	kind := crawler.CrawlKindOf(err)
	crawlErrorsTotal.WithLabelValues(string(kind)).Inc()
	log.Error().Err(err).Str("kind", string(kind)).Msg("Crawl failed")

	switch kind {
	case crawler.CrawlRateLimited:
		respondError(w, http.StatusServiceUnavailable, "upstream_rate_limited",
			"upstream is rate limiting or unreachable, try again later")
	case crawler.CrawlUpstreamRejected:
		respondError(w, http.StatusBadGateway, "upstream_rejected",
			"upstream rejected the request")
	case crawler.CrawlParseFailed:
		respondError(w, http.StatusInternalServerError, "parse_failed",
			"upstream page could not be parsed, markup may have changed")
	case crawler.CrawlCancelled:
		respondError(w, statusClientClosedRequest, "cancelled", "request cancelled")
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Success: false, Error: code, Message: message})
}
