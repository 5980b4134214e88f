// Package endpoints implements the HTTP client for the remote analysis
// endpoints, one circuit breaker per endpoint id.
package endpoints

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerConfig tunes a per-endpoint circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int `mapstructure:"failure_threshold"`

	// OpenInterval is how long the breaker stays open before letting a
	// single probe through.
	OpenInterval time.Duration `mapstructure:"open_interval"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenInterval <= 0 {
		c.OpenInterval = 30 * time.Second
	}
	return c
}

// Breaker is a minimal closed/open/half-open circuit breaker.  Open means
// calls are refused outright; after OpenInterval one probe is admitted and
// its outcome decides between closing and re-opening.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state    breakerState
	failures int
	openedAt time.Time
	probing  bool

	clock func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), clock: time.Now}
}

// Allow reports whether a call may proceed right now.  In half-open state
// only one probe at a time is admitted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.clock().Sub(b.openedAt) < b.cfg.OpenInterval {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	default: // half-open
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}

// RecordFailure counts a failure; at the threshold (or on a failed probe)
// the breaker opens.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.open()
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.open()
	}
}

func (b *Breaker) open() {
	b.state = stateOpen
	b.openedAt = b.clock()
	b.failures = 0
	b.probing = false
}
