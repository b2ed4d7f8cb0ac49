package resilience

import (
	"sync"
	"time"
)

// CircuitState is the breaker's position.
type CircuitState string

const (
	// StateClosed admits all calls.
	StateClosed CircuitState = "closed"
	// StateOpen rejects all calls until the recovery timeout elapses.
	StateOpen CircuitState = "open"
	// StateHalfOpen admits a bounded number of trial calls.
	StateHalfOpen CircuitState = "half_open"
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before
	// admitting trial calls.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the consecutive-success count in half-open
	// that closes the breaker.
	SuccessThreshold int

	// HalfOpenMaxCalls bounds concurrent trial calls in half-open.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the standard breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker protects one upstream. Closed counts consecutive
// failures; open rejects until the recovery timeout, transitioning to
// half-open lazily on the next CanExecute; half-open closes after enough
// consecutive successes and reopens on any failure.
type CircuitBreaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         CircuitState
	failures      int
	successes     int
	halfOpenCalls int
	openedAt      time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// CanExecute reports whether a call may proceed, performing the lazy
// open → half-open transition when the recovery timeout has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.RecoveryTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.halfOpenCalls = 1
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	}

	return false
}

// RecordSuccess registers a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
		if cb.successes >= cb.config.SuccessThreshold {
			cb.toClosed()
		}
	}
}

// RecordFailure registers a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		// Any trial failure reopens immediately.
		cb.toOpen()
	}
}

// Status returns the current state and counters.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerStatus{
		State:     cb.state,
		Failures:  cb.failures,
		Successes: cb.successes,
		OpenedAt:  cb.openedAt,
	}
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
}

// BreakerStatus is a point-in-time snapshot of a breaker.
type BreakerStatus struct {
	State     CircuitState `json:"state"`
	Failures  int          `json:"failures"`
	Successes int          `json:"successes"`
	OpenedAt  time.Time    `json:"opened_at,omitempty"`
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCalls = 0
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCalls = 0
	cb.openedAt = time.Time{}
}
