// Package circuitbreaker stops polling a chain after repeated failures
package circuitbreaker

import (
	"strconv"
	"sync"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/metrics"
)

// Config is the shared breaker configuration
type Config struct {
	Enabled       bool
	Threshold     int
	FailureWindow time.Duration
	ResetTimeout  time.Duration
}

// CircuitBreaker trips after Threshold failures within FailureWindow and
// half-opens again after ResetTimeout
type CircuitBreaker struct {
	chainID       uint64
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	logger        logger.Logger
	now           func() time.Time
	mu            sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker for a chain
func NewCircuitBreaker(chainID uint64, cfg Config, logger logger.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		chainID:       chainID,
		enabled:       cfg.Enabled,
		failThreshold: cfg.Threshold,
		failureWindow: cfg.FailureWindow,
		resetTimeout:  cfg.ResetTimeout,
		logger:        logger,
		now:           time.Now,
	}
	cb.report()
	return cb
}

func (cb *CircuitBreaker) report() {
	state := 0.0
	if cb.tripped {
		state = 1
	}
	metrics.CircuitBreakerState.WithLabelValues(strconv.FormatUint(cb.chainID, 10)).Set(state)
}

// resetIfDue closes a tripped breaker whose reset timeout has passed
func (cb *CircuitBreaker) resetIfDue(now time.Time) {
	if cb.tripped && now.Sub(cb.tripTime) > cb.resetTimeout {
		cb.logger.InfoWithChain(cb.chainID, "Circuit breaker: attempting to reset after timeout")
		cb.tripped = false
		cb.failureCount = 0
		cb.report()
	}
}

// RecordFailure records a failure and reports whether the circuit is open
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.resetIfDue(now)
	if cb.tripped {
		return true
	}

	// Reset failure count if outside window
	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		cb.report()
		cb.logger.ErrorWithChain(cb.chainID, "Circuit breaker tripped: %d failures in window", cb.failureCount)
		return true
	}

	return false
}

// RecordSuccess clears the failure count of a closed circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		cb.failureCount = 0
	}
}

// IsOpen returns true if the circuit is open (tripped)
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.resetIfDue(cb.now())
	return cb.tripped
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
	cb.report()
}

// State is a snapshot of a breaker for the status endpoint
type State struct {
	Enabled      bool      `json:"enabled"`
	Open         bool      `json:"open"`
	FailureCount int       `json:"failure_count"`
	Threshold    int       `json:"threshold"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	TripTime     time.Time `json:"trip_time,omitempty"`
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return State{
		Enabled:      cb.enabled,
		Open:         cb.tripped,
		FailureCount: cb.failureCount,
		Threshold:    cb.failThreshold,
		LastFailure:  cb.lastFailure,
		TripTime:     cb.tripTime,
	}
}
