// Package resilience wraps a transport call with a per-attempt timeout,
// jittered exponential backoff, a per-endpoint circuit breaker, and
// degraded-response fallback.
package resilience

import (
	"sync"
	"time"
)

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half-open"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
)

// CircuitBreaker guards a single endpoint. closed allows every call;
// failureThreshold consecutive failures trip it to open, which rejects
// every call without contacting the endpoint until resetTimeout has
// elapsed, at which point exactly one half-open probe is allowed through.
type CircuitBreaker struct {
	mu sync.Mutex

	state        circuitState
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time

	// probing is true for the one caller let through in half-open; it
	// blocks every other concurrent Allow() from also slipping through
	// before that probe resolves. The state flip to half-open alone isn't
	// enough: Allow() and the flip both happen under cb.mu, but without
	// this flag a second Allow() call observing state already half-open
	// would still return true, letting two probes race the same endpoint.
	probing bool
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:        stateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Allow reports whether a call may proceed, transitioning open to
// half-open when resetTimeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	case stateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = stateHalfOpen
			cb.probing = true
			return true
		}
		return false
	default:
		return false
	}
}

// Success records a successful call, closing the breaker and resetting
// its failure count.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = stateClosed
	cb.failures = 0
	cb.probing = false
}

// Failure records a failed call. A failure during a half-open probe
// reopens the breaker immediately; a failure in closed state counts
// toward the threshold.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	if cb.state == stateHalfOpen {
		cb.state = stateOpen
		cb.probing = false
		return
	}

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.state = stateOpen
	}
}

// Open reports whether the breaker is currently rejecting calls outright
// (i.e. in the open state, not yet eligible for a half-open probe).
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen
}

// BreakerRegistry holds one CircuitBreaker per endpoint URL.
type BreakerRegistry struct {
	mu           sync.Mutex
	breakers     map[string]*CircuitBreaker
	threshold    int
	resetTimeout time.Duration
}

// NewBreakerRegistry builds a registry that lazily creates breakers with
// the given threshold/resetTimeout on first use of a URL.
func NewBreakerRegistry(threshold int, resetTimeout time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:     make(map[string]*CircuitBreaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Get returns the breaker for url, creating one if this is the first call
// for that endpoint.
func (r *BreakerRegistry) Get(url string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[url]
	if !ok {
		cb = NewCircuitBreaker(r.threshold, r.resetTimeout)
		r.breakers[url] = cb
	}
	return cb
}
