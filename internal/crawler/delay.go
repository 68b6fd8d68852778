package crawler

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// DelayPolicy computes the randomized pre-request delay and the
// exponential-backoff-with-jitter retry delays. Stateless apart from its
// random source, so one policy can serve any number of concurrent crawls.
type DelayPolicy struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	multiplier  float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDelayPolicy creates a policy with a clock-seeded random source.
func NewDelayPolicy(minDelay, maxDelay, backoffBase, backoffMax time.Duration, multiplier float64) *DelayPolicy {
	return NewDelayPolicyWithRand(minDelay, maxDelay, backoffBase, backoffMax, multiplier,
		rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewDelayPolicyWithRand creates a policy with an injected random source so
// tests can assert distributional properties deterministically.
func NewDelayPolicyWithRand(minDelay, maxDelay, backoffBase, backoffMax time.Duration, multiplier float64, rnd *rand.Rand) *DelayPolicy {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if multiplier < 1 {
		multiplier = 2.0
	}

	return &DelayPolicy{
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		multiplier:  multiplier,
		rnd:         rnd,
	}
}

// PreRequest returns a delay uniformly distributed in [minDelay, maxDelay],
// applied before every fetch attempt including the first. Uniform request
// timing is trivially detectable; this breaks it up.
func (p *DelayPolicy) PreRequest() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxDelay == p.minDelay {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rnd.Int63n(int64(p.maxDelay-p.minDelay)))
}

// Backoff returns the delay before retry attempt n (1-based):
// base * multiplier^(n-1), scaled by uniform jitter in [0.5, 1.5) so
// concurrent retries do not synchronize, capped at backoffMax. Monotonically
// non-decreasing in expectation as n grows. The attempt cap is enforced by
// the caller, not here.
func (p *DelayPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.backoffBase) * math.Pow(p.multiplier, float64(attempt-1))
	if base > float64(p.backoffMax) {
		base = float64(p.backoffMax)
	}

	p.mu.Lock()
	jitter := 0.5 + p.rnd.Float64()
	p.mu.Unlock()

	d := time.Duration(base * jitter)
	if ceil := time.Duration(float64(p.backoffMax) * 1.5); d > ceil {
		d = ceil
	}
	return d
}
