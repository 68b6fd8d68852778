package crawler

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/user/gh-trending-go/internal/model"
)

var (
	// periodStarsPattern matches the trailing "123 stars today" /
	// "1,024 stars this week" / "9 stars this month" phrase.
	periodStarsPattern = regexp.MustCompile(`([\d,]+)\s+stars?\s+(?:today|this week|this month)`)
)

// Parser extracts ordered trending repository records from a fetched page.
//
// Field policy: owner and name are identity fields, an entry without them is
// dropped; every other field degrades to its absent value (empty string for
// description and language, 0 for counts) so a single malformed entry never
// discards the rest of the page. A document with zero recognized entries is a
// structural mismatch, since an empty trending page is implausible and more
// likely means GitHub changed its markup.
type Parser struct {
	baseURL string
}

// NewParser creates a parser resolving repository URLs against baseURL.
func NewParser(baseURL string) *Parser {
	return &Parser{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Parse extracts trending records in page order. Page order is the trending
// rank and is never resorted. A duplicate fullName keeps its first
// occurrence; later ones are dropped.
func (p *Parser) Parse(page *RawPage) ([]model.TrendingRepo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	entries := doc.Find("article.Box-row")
	if entries.Length() == 0 {
		log.Warn().Str("url", page.URL).Msg("No repository entries found, markup may have changed")
		return nil, &ParseError{Err: ErrStructuralMismatch}
	}

	seen := make(map[string]struct{}, entries.Length())
	repos := make([]model.TrendingRepo, 0, entries.Length())

	entries.Each(func(i int, entry *goquery.Selection) {
		repo, ok := p.parseEntry(entry)
		if !ok {
			log.Warn().Int("rank", i+1).Msg("Dropping entry without owner/name identity")
			return
		}
		if _, dup := seen[repo.FullName]; dup {
			log.Warn().Str("full_name", repo.FullName).Msg("Dropping duplicate entry")
			return
		}
		seen[repo.FullName] = struct{}{}
		repos = append(repos, repo)
	})

	if len(repos) == 0 {
		return nil, &ParseError{Err: ErrStructuralMismatch}
	}

	log.Debug().Int("count", len(repos)).Str("url", page.URL).Msg("Parsed trending entries")
	return repos, nil
}

// parseEntry extracts one repository record. ok is false when the identity
// link is missing or not of the owner/name form.
func (p *Parser) parseEntry(entry *goquery.Selection) (model.TrendingRepo, bool) {
	var repo model.TrendingRepo

	href, exists := entry.Find("h2 a").First().Attr("href")
	if !exists {
		return repo, false
	}

	path := strings.Trim(strings.TrimSpace(href), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return repo, false
	}

	repo.Owner = parts[0]
	repo.Name = parts[1]
	repo.FullName = repo.Owner + "/" + repo.Name
	repo.URL = p.baseURL + "/" + repo.FullName

	repo.Description = strings.TrimSpace(entry.Find("p").First().Text())

	// No language badge means no labeled primary language; the field stays
	// empty rather than guessing.
	repo.Language = strings.TrimSpace(entry.Find("span[itemprop='programmingLanguage']").First().Text())

	entry.Find("a").Each(func(_ int, link *goquery.Selection) {
		linkHref, ok := link.Attr("href")
		if !ok {
			return
		}
		switch {
		case strings.HasSuffix(linkHref, "/stargazers"):
			repo.StarsTotal = parseCount(link.Text())
		case strings.HasSuffix(linkHref, "/forks"):
			repo.ForksTotal = parseCount(link.Text())
		}
	})

	// StarsInPeriod comes from the trailing span only. Matching against the
	// whole entry text would fuse the adjacent star/fork counts into the
	// number, since text nodes concatenate without separators. Stays 0 when
	// the phrase is absent; a quiet repo can legitimately gain no stars in
	// the window.
	entry.Find("span.d-inline-block.float-sm-right").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		m := periodStarsPattern.FindStringSubmatch(span.Text())
		if m == nil {
			return true
		}
		repo.StarsInPeriod = parseCount(m[1])
		return false
	})

	return repo, true
}

// parseCount parses a display count like "1,234", "12.5k" or "1.2m".
// Unparseable text degrades to 0.
func parseCount(text string) int {
	text = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "k"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "k")
	case strings.HasSuffix(text, "m"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "m")
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil || n < 0 {
		return 0
	}
	return int(n * multiplier)
}
