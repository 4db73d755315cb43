package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker is refusing calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// CircuitBreaker guards calls to an external publisher so an outage
// there cannot stall the caller. Closed until failureRatio of requests
// in an interval fail, then open for timeout, then half-open probing.
type CircuitBreaker struct {
	name         string
	maxRequests  uint32
	interval     time.Duration
	timeout      time.Duration
	failureRatio float64

	mutex    sync.Mutex
	state    State
	requests uint32
	failures uint32
	expiry   time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxRequests:  100,
		interval:     60 * time.Second,
		timeout:      60 * time.Second,
		failureRatio: 0.6,
		state:        StateClosed,
	}
}

// Execute runs req unless the breaker is open, and feeds the outcome
// back into the breaker state.
func (cb *CircuitBreaker) Execute(req func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := req()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentState(time.Now())
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.currentState(time.Now()) {
	case StateOpen:
		return ErrBreakerOpen
	case StateHalfOpen:
		if cb.requests >= cb.maxRequests {
			return ErrBreakerOpen
		}
	}

	cb.requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(time.Now())

	if success {
		if state == StateHalfOpen {
			cb.reset(StateClosed)
		}
		return
	}

	cb.failures++
	if state == StateHalfOpen || cb.readyToTrip() {
		cb.state = StateOpen
		cb.expiry = time.Now().Add(cb.timeout)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.requests >= cb.maxRequests &&
		float64(cb.failures)/float64(cb.requests) >= cb.failureRatio
}

// currentState rolls the counting window or leaves the open state once
// the corresponding expiry passes. Callers must hold the mutex.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.reset(StateClosed)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.reset(StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) reset(state State) {
	cb.state = state
	cb.requests = 0
	cb.failures = 0
	if state == StateClosed {
		cb.expiry = time.Now().Add(cb.interval)
	} else {
		cb.expiry = time.Time{}
	}
}
