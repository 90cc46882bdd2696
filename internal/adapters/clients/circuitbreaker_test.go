package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so cool-downs need no sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures, halfOpenLimit int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       30 * time.Second,
		HalfOpenLimit: halfOpenLimit,
	})
	cb.now = clock.Now

	return cb, clock
}

func trip(cb *CircuitBreaker) {
	for range cb.cfg.MaxFailures {
		cb.RecordFailure()
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 1)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "a success resets the failure streak")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_CoolDown(t *testing.T) {
	cb, clock := newTestBreaker(1, 1)
	trip(cb)

	clock.Advance(29 * time.Second)
	assert.False(t, cb.Allow())
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one probe with a half-open limit of 1")
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name    string
		results []bool // probe outcomes, in order
		want    State
	}{
		{name: "all probes succeed", results: []bool{true, true}, want: StateClosed},
		{name: "one success is not enough", results: []bool{true}, want: StateHalfOpen},
		{name: "first probe fails", results: []bool{false}, want: StateOpen},
		{name: "second probe fails", results: []bool{true, false}, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(2, 2)
			trip(cb)
			clock.Advance(30 * time.Second)

			for _, ok := range tt.results {
				require.True(t, cb.Allow())

				if ok {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}

			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreaker_ReopenRestartsCoolDown(t *testing.T) {
	cb, clock := newTestBreaker(1, 1)
	trip(cb)

	clock.Advance(30 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordFailure()

	clock.Advance(10 * time.Second)
	assert.False(t, cb.Allow())

	clock.Advance(20 * time.Second)
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ListenersRunInOrder(t *testing.T) {
	cb, clock := newTestBreaker(1, 1)

	var got []string

	cb.OnStateChange(func(from, to State) { got = append(got, "a:"+from.String()+">"+to.String()) })
	cb.OnStateChange(func(_, to State) {
		// Listeners run after the lock is released.
		assert.Equal(t, to, cb.State())
		got = append(got, "b:"+to.String())
	})
	cb.OnStateChange(nil)

	trip(cb)
	clock.Advance(30 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()

	assert.Equal(t, []string{
		"a:closed>open", "b:open",
		"a:open>half-open", "b:half-open",
		"a:half-open>closed", "b:closed",
	}, got)
}

func TestCircuitBreaker_ZeroConfigIsUsable(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.Allow(), "zero timeout probes immediately")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ConcurrentProbes(t *testing.T) {
	const limit = 3

	cb, clock := newTestBreaker(1, limit)
	trip(cb)
	clock.Advance(30 * time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for range 50 {
		wg.Go(func() {
			if cb.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	assert.Equal(t, limit, allowed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
