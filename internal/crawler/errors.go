package crawler

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies terminal fetch failures.
type FetchErrorKind string

const (
	// FetchRateLimitedOrUnreachable means every attempt failed with a
	// retryable condition (403/429, connection error, timeout) and the
	// retry budget is exhausted. Recoverable by a later re-crawl.
	FetchRateLimitedOrUnreachable FetchErrorKind = "rate_limited_or_unreachable"

	// FetchUpstreamRejected means the upstream answered with an unexpected
	// HTTP status. Not retried: likely a durable problem such as a removed
	// page, not rate limiting.
	FetchUpstreamRejected FetchErrorKind = "upstream_rejected"
)

// FetchError is the terminal failure of a fetch, after internal retries.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int // last HTTP status observed, 0 for pure network failures
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch failed (%s, HTTP %d, %d attempts): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s, %d attempts): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError signals that the fetched document could not be interpreted.
type ParseError struct {
	Err error
}

// ErrStructuralMismatch means the repeated repository-entry pattern was not
// found at all: the upstream markup changed, as opposed to a transient
// network problem. An empty trending page is implausible and treated the
// same way.
var ErrStructuralMismatch = errors.New("no repository entries recognized in document")

func (e *ParseError) Error() string { return fmt.Sprintf("parse failed: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// CrawlErrorKind classifies crawl outcomes for the caller. The API layer maps
// each kind to a distinct client-facing status.
type CrawlErrorKind string

const (
	CrawlRateLimited      CrawlErrorKind = "rate_limited"
	CrawlUpstreamRejected CrawlErrorKind = "upstream_rejected"
	CrawlParseFailed      CrawlErrorKind = "parse_failed"
	CrawlCancelled        CrawlErrorKind = "cancelled"
)

// CrawlError is the typed failure returned by Crawl. It carries the fetch or
// parse failure it was mapped from; no partial record list accompanies it.
type CrawlError struct {
	Kind       CrawlErrorKind
	StatusCode int // populated for upstream_rejected
	Err        error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl failed (%s): %v", e.Kind, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// CrawlKindOf extracts the CrawlErrorKind from an error chain, or "" when the
// error did not originate from a crawl.
func CrawlKindOf(err error) CrawlErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
