package crawler

import (
	"math/rand"
	"sync"
	"time"
)

// defaultUserAgents covers Chrome, Safari and Firefox on macOS, Windows and
// Linux. Realistic desktop strings reduce fingerprint-based blocking.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// UserAgentPool hands out one user-agent string per request. Selection is
// uniform-random rather than round-robin so concurrent requests do not cycle
// through the pool in lockstep, which would itself be a fingerprint.
// The pool is immutable after construction.
type UserAgentPool struct {
	agents []string
	mu     sync.Mutex
	rnd    *rand.Rand
}

// NewUserAgentPool creates a pool from the given strings. An empty slice
// falls back to the built-in desktop set. The random source is seeded from
// the clock; use NewUserAgentPoolWithRand for deterministic selection.
func NewUserAgentPool(agents []string) *UserAgentPool {
	return NewUserAgentPoolWithRand(agents, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewUserAgentPoolWithRand creates a pool with an injected random source.
func NewUserAgentPoolWithRand(agents []string, rnd *rand.Rand) *UserAgentPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	copied := make([]string, len(agents))
	copy(copied, agents)

	return &UserAgentPool{agents: copied, rnd: rnd}
}

// Next returns a uniformly chosen user-agent string. Safe for concurrent use.
func (p *UserAgentPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.Intn(len(p.agents))]
}

// Size returns the number of strings in the pool.
func (p *UserAgentPool) Size() int {
	return len(p.agents)
}
