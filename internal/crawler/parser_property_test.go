package crawler

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any successful parse, the record sequence preserves source
// order, every fullName is unique, and no count is negative. StarsInPeriod
// carries no assumed relationship to StarsTotal.
func TestProperty_ParseOrderAndInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	nameGen := gen.RegexMatch(`[a-z][a-z0-9\-]{1,12}`)

	properties.Property("order preserved, fullNames unique, counts non-negative", prop.ForAll(
		func(owners []string, stars, forks, period []int) bool {
			n := len(owners)
			if len(stars) < n {
				n = len(stars)
			}
			if len(forks) < n {
				n = len(forks)
			}
			if len(period) < n {
				n = len(period)
			}
			if n == 0 {
				return true
			}

			entries := make([]string, 0, n)
			for i := 0; i < n; i++ {
				// Index in the repo name keeps fullNames unique and
				// encodes the expected rank.
				entries = append(entries, repoEntry(
					owners[i], fmt.Sprintf("repo-%d", i), "", "Go",
					fmt.Sprintf("%d", stars[i]),
					fmt.Sprintf("%d", forks[i]),
					fmt.Sprintf("%d stars today", period[i]),
				))
			}

			repos, err := newTestParser().Parse(trendingPage(entries...))
			if err != nil {
				return false
			}
			if len(repos) != n {
				return false
			}

			seen := make(map[string]bool, n)
			for i, repo := range repos {
				if repo.Name != fmt.Sprintf("repo-%d", i) {
					return false
				}
				if seen[repo.FullName] {
					return false
				}
				seen[repo.FullName] = true
				if repo.StarsTotal < 0 || repo.ForksTotal < 0 || repo.StarsInPeriod < 0 {
					return false
				}
				if repo.StarsInPeriod != period[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(nameGen),
		gen.SliceOf(gen.IntRange(0, 500000)),
		gen.SliceOf(gen.IntRange(0, 100000)),
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.Property("repository URL is derivable from fullName", prop.ForAll(
		func(owner, name string) bool {
			page := trendingPage(repoEntry(owner, name, "", "", "1", "1", ""))
			repos, err := newTestParser().Parse(page)
			if err != nil || len(repos) != 1 {
				return false
			}
			return repos[0].URL == "https://github.com/"+repos[0].FullName
		},
		nameGen,
		nameGen,
	))

	properties.TestingRun(t)
}
