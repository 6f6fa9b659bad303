// Package router provides shared health tracking for executor routing
// strategies.
package router

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, rejecting requests
	CircuitHalfOpen                     // Testing if recovered
)

// Default configuration values
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
)

// ExecutorStats tracks the health of a single executor behind a router.
type ExecutorStats struct {
	mu sync.RWMutex

	totalRequests int64
	totalFailures int64

	state               CircuitState
	consecutiveFailures int
	lastFailure         time.Time
}

func NewExecutorStats() *ExecutorStats {
	return &ExecutorStats{
		state: CircuitClosed,
	}
}

// IsAvailable checks if the executor may receive requests, transitioning
// Open to HalfOpen once the recovery timeout has passed.
func (s *ExecutorStats) IsAvailable(recoveryTimeout time.Duration) bool {
	s.mu.RLock()
	state := s.state
	lastFailure := s.lastFailure
	s.mu.RUnlock()

	if state != CircuitOpen {
		return true
	}

	if time.Since(lastFailure) >= recoveryTimeout {
		s.mu.Lock()
		if s.state == CircuitOpen {
			s.state = CircuitHalfOpen
		}
		s.mu.Unlock()

		return true
	}

	return false
}

// RecordSuccess updates stats after a successful request
func (s *ExecutorStats) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.consecutiveFailures = 0

	if s.state == CircuitHalfOpen {
		s.state = CircuitClosed
	}
}

// RecordFailure updates stats after a failed request
func (s *ExecutorStats) RecordFailure(failureThreshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.totalFailures++
	s.consecutiveFailures++
	s.lastFailure = time.Now()

	if s.state == CircuitHalfOpen || s.consecutiveFailures >= failureThreshold {
		s.state = CircuitOpen
	}
}

// GetMetrics returns current counters in a thread-safe manner
func (s *ExecutorStats) GetMetrics() (state CircuitState, totalRequests, totalFailures int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state, s.totalRequests, s.totalFailures
}

func (s *ExecutorStats) GetLastFailure() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastFailure
}

// SetHalfOpen transitions the circuit to half-open state
func (s *ExecutorStats) SetHalfOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = CircuitHalfOpen
}
