package model

import (
	"fmt"
	"time"
)

// Since is the trending time window qualifier understood by GitHub.
type Since string

const (
	SinceDaily   Since = "daily"
	SinceWeekly  Since = "weekly"
	SinceMonthly Since = "monthly"
)

// ParseSince validates a window string and applies the daily default for
// an empty value.
func ParseSince(s string) (Since, error) {
	switch Since(s) {
	case "":
		return SinceDaily, nil
	case SinceDaily, SinceWeekly, SinceMonthly:
		return Since(s), nil
	default:
		return "", fmt.Errorf("invalid since value %q: must be daily, weekly or monthly", s)
	}
}

// TrendingRepo represents one repository entry on the trending page.
//
// Description and Language are optional page elements; an empty string means
// the page had no description block / no language badge for the entry.
// StarsInPeriod is 0 when the "N stars today" phrase is absent, which is a
// legitimate low-activity value, not a missing one.
type TrendingRepo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description,omitempty"`
	Language      string `json:"language,omitempty"`
	StarsTotal    int    `json:"stars_total"`
	StarsInPeriod int    `json:"stars_in_period"`
	ForksTotal    int    `json:"forks_total"`
	URL           string `json:"url"`
}

// CrawlRequest describes one trending crawl. Language is an optional filter;
// empty means all languages. Constructed per call and immutable.
type CrawlRequest struct {
	Language string `json:"language,omitempty"`
	Since    Since  `json:"since"`
}

// CrawlResult is the ordered outcome of one successful crawl. Repos preserve
// the page's display order, which is the trending rank.
type CrawlResult struct {
	Repos     []TrendingRepo `json:"repositories"`
	SourceURL string         `json:"source_url"`
	FetchedAt time.Time      `json:"fetched_at"`
}
