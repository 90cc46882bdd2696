package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single checker when the caller's context
// has no earlier deadline.
const DefaultCheckTimeout = 2 * time.Second

// ErrDuplicateChecker is returned by Register for a name already in use.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// ErrDegraded marks a failure the component works around, such as the
// quote store serving from memory after durable storage failed. Checkers
// wrap it to report degraded instead of unhealthy.
var ErrDegraded = errors.New("degraded")

// HealthChecker is a component that reports its own health.
type HealthChecker interface {
	// Name identifies the component in readiness output. Names are unique
	// within a registry.
	Name() string

	// Check returns nil when healthy. It must honor ctx.
	Check(ctx context.Context) error
}

// HealthRegistry runs registered checks for the readiness probe.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is ordered: healthy < degraded < unhealthy.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// HealthResult is the outcome of one CheckAll. Status is the most severe
// status among Checks.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is one checker's outcome. Message carries the error text.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

func resultOf(err error, took time.Duration) *CheckResult {
	r := &CheckResult{Status: HealthStatusHealthy, Duration: took}

	switch {
	case err == nil:
		return r
	case errors.Is(err, ErrDegraded):
		r.Status = HealthStatusDegraded
	default:
		r.Status = HealthStatusUnhealthy
	}

	r.Message = err.Error()

	return r
}

// DefaultHealthRegistry runs every checker concurrently, each under its
// own timeout.
type DefaultHealthRegistry struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []HealthChecker
}

// RegistryOption configures a DefaultHealthRegistry.
type RegistryOption func(*DefaultHealthRegistry)

// WithCheckTimeout overrides DefaultCheckTimeout. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *DefaultHealthRegistry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewHealthRegistry(opts ...RegistryOption) *DefaultHealthRegistry {
	r := &DefaultHealthRegistry{timeout: DefaultCheckTimeout}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.checkers {
		if c.Name() == checker.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateChecker, checker.Name())
		}
	}

	r.checkers = append(r.checkers, checker)

	return nil
}

func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := append([]HealthChecker(nil), r.checkers...)
	r.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))

	var g errgroup.Group

	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			results[i] = resultOf(err, time.Since(start))

			return nil
		})
	}

	_ = g.Wait()

	out := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	for i, c := range checkers {
		out.Checks[c.Name()] = results[i]

		if results[i].Status.severity() > out.Status.severity() {
			out.Status = results[i].Status
		}
	}

	return out
}
