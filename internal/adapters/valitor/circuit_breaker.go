package valitor

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of the gateway circuit breaker
type BreakerState int

const (
	// BreakerClosed lets every call through
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cool-down elapses
	BreakerOpen
	// BreakerHalfOpen lets a limited number of probe calls through
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrBreakerOpen is returned while the gateway is considered down
	ErrBreakerOpen = errors.New("gateway circuit breaker is open")
	// ErrProbeLimit is returned when the half-open probe budget is used up
	ErrProbeLimit = errors.New("gateway circuit breaker probe limit reached")
)

// BreakerConfig configures the gateway circuit breaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// CoolDown is how long the breaker stays open before probing
	CoolDown time.Duration
	// HalfOpenProbes is the number of concurrent probe calls while half-open
	HalfOpenProbes uint32
}

// DefaultBreakerConfig returns the breaker settings used for the merchant API
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// CircuitBreaker stops calling the gateway after repeated failures
type CircuitBreaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    BreakerState
	failures uint32
	probes   uint32
	openedAt time.Time
	now      func() time.Time
	onChange func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, state: BreakerClosed, now: time.Now}
}

// OnStateChange registers a hook invoked on every state transition.
// The hook runs with the breaker lock held and must not call back into it.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Execute runs fn if the breaker allows it and records the outcome.
// Errors for which countable returns false do not count as failures.
func (cb *CircuitBreaker) Execute(fn func() error, countable func(error) bool) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err != nil && (countable == nil || countable(err)))
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.CoolDown {
			return ErrBreakerOpen
		}
		cb.transition(BreakerHalfOpen)
		cb.probes = 1
		return nil
	default:
		if cb.probes >= cb.cfg.HalfOpenProbes {
			return ErrProbeLimit
		}
		cb.probes++
		return nil
	}
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		if cb.state == BreakerHalfOpen {
			cb.transition(BreakerClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.transition(BreakerOpen)
	}
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.probes = 0
	if to == BreakerOpen {
		cb.openedAt = cb.now()
	} else {
		cb.failures = 0
	}
	if cb.onChange != nil {
		cb.onChange(from, to)
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
