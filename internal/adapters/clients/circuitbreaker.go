package clients

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without contacting the remote while the
	// breaker is open or its half-open probes are all in flight.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once retries run out.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// State is the breaker position. The numeric values are exported as the
// remote circuit gauge.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig mirrors config.CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	MaxFailures   int           // consecutive failures that open the circuit
	Timeout       time.Duration // cool-down before probing again
	HalfOpenLimit int           // probe successes needed to close; also the probe concurrency
}

// transition is a state change waiting to be reported once the lock drops.
type transition struct {
	from, to State
}

// CircuitBreaker guards the remote posts API. It opens after MaxFailures
// consecutive failures, lets HalfOpenLimit probes through once Timeout has
// passed, and closes again after that many probes succeed. A failed probe
// reopens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	listeners []func(from, to State)
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}

	if cfg.HalfOpenLimit < 1 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange adds a listener. Listeners run synchronously, in
// registration order, on the goroutine that caused the change and after
// the breaker's lock is released.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	if fn == nil {
		return
	}

	cb.mu.Lock()
	cb.listeners = append(cb.listeners, fn)
	cb.mu.Unlock()
}

// Allow reports whether a request may go out. A true result must be
// followed by exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var (
		ok bool
		t  *transition
	)

	switch cb.state {
	case StateClosed:
		ok = true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
			t = cb.moveTo(StateHalfOpen)
			cb.probes = 1
			ok = true
		}
	case StateHalfOpen:
		if cb.probes < cb.cfg.HalfOpenLimit {
			cb.probes++
			ok = true
		}
	}

	cb.unlockAndNotify(t)

	return ok
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var t *transition

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.releaseProbe()
		cb.successes++

		if cb.successes >= cb.cfg.HalfOpenLimit {
			t = cb.moveTo(StateClosed)
		}
	}

	cb.unlockAndNotify(t)
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var t *transition

	switch cb.state {
	case StateClosed:
		cb.failures++

		if cb.failures >= cb.cfg.MaxFailures {
			t = cb.moveTo(StateOpen)
		}
	case StateHalfOpen:
		cb.releaseProbe()
		t = cb.moveTo(StateOpen)
	}

	cb.unlockAndNotify(t)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

func (cb *CircuitBreaker) releaseProbe() {
	if cb.probes > 0 {
		cb.probes--
	}
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to State) *transition {
	if cb.state == to {
		return nil
	}

	t := &transition{from: cb.state, to: to}

	cb.state = to
	cb.failures = 0
	cb.successes = 0

	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.probes = 0
	case StateClosed:
		cb.probes = 0
	}

	return t
}

func (cb *CircuitBreaker) unlockAndNotify(t *transition) {
	if t == nil {
		cb.mu.Unlock()
		return
	}

	listeners := cb.listeners
	cb.mu.Unlock()

	for _, fn := range listeners {
		fn(t.from, t.to)
	}
}
