package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

const tracerName = "github.com/jsamuelsen/quotekeeper/internal/app"

// Sync defaults.
const (
	DefaultSyncInterval = 60 * time.Second
	DefaultSyncTimeout  = 10 * time.Second
	DefaultSyncLimit    = 5
)

// SyncState is the engine's position in its cycle.
type SyncState string

// Sync states.
const (
	SyncIdle     SyncState = "idle"
	SyncFetching SyncState = "fetching"
	SyncMerging  SyncState = "merging"
	SyncFailed   SyncState = "failed"
)

// SyncOutcome is the reported result of one cycle.
type SyncOutcome string

// Sync outcomes.
const (
	OutcomeSynced   SyncOutcome = "synced"
	OutcomeUpToDate SyncOutcome = "up to date"
	OutcomeFailed   SyncOutcome = "failed"
)

// SyncResult describes a finished cycle.
type SyncResult struct {
	Outcome  SyncOutcome   `json:"outcome"`
	Fetched  int           `json:"fetched"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// SyncStatus is an observable snapshot of the engine.
type SyncStatus struct {
	State       SyncState   `json:"state"`
	LastOutcome SyncOutcome `json:"lastOutcome,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
	LastRun     time.Time   `json:"lastRun"`
	LastSuccess time.Time   `json:"lastSuccess"`
	Cycles      int         `json:"cycles"`
}

// SyncConfig tunes the engine. Zero values fall back to the defaults.
type SyncConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Limit    int
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultSyncInterval
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultSyncTimeout
	}

	if c.Limit <= 0 {
		c.Limit = DefaultSyncLimit
	}

	return c
}

// SyncEngine keeps the store in step with the remote source.
// The server always wins identity conflicts.
type SyncEngine struct {
	store    *Store
	source   ports.RemoteQuoteSource
	recorder ports.SyncRecorder
	cfg      SyncConfig
	logger   *slog.Logger

	flight singleflight.Group

	waitMu  sync.Mutex
	waiters int
	abort   context.CancelFunc // cancels the cycle in flight

	mu     sync.RWMutex
	status SyncStatus
}

// SyncEngineConfig contains the engine's dependencies.
type SyncEngineConfig struct {
	Store    *Store
	Source   ports.RemoteQuoteSource
	Recorder ports.SyncRecorder // optional
	Config   SyncConfig
	Logger   *slog.Logger
}

// NewSyncEngine creates an idle engine.
func NewSyncEngine(cfg SyncEngineConfig) *SyncEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncEngine{
		store:    cfg.Store,
		source:   cfg.Source,
		recorder: cfg.Recorder,
		cfg:      cfg.Config.withDefaults(),
		logger:   logger.With(slog.String("component", "sync")),
		status:   SyncStatus{State: SyncIdle},
	}
}

// Status returns the current state and the last cycle's outcome. The state
// stays failed after a failed cycle until the next one starts.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status
}

// Interval returns the configured tick interval.
func (e *SyncEngine) Interval() time.Duration {
	return e.cfg.Interval
}

// SyncNow runs one cycle. Callers arriving while a cycle is in flight
// wait for it and share its result instead of starting another.
//
// The cycle does not belong to any one caller. A caller whose ctx ends
// stops waiting and gets ctx.Err(), while the cycle carries on for the
// others. It is cancelled only once every waiting caller has left, and is
// bounded by the sync timeout either way.
func (e *SyncEngine) SyncNow(ctx context.Context) (SyncResult, error) {
	e.join()

	ch := e.flight.DoChan("sync", func() (any, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
		defer cancel()

		e.track(cancel)
		defer e.track(nil)

		return e.cycle(cycleCtx)
	})

	select {
	case r := <-ch:
		e.leave()

		res, _ := r.Val.(SyncResult)

		return res, r.Err
	case <-ctx.Done():
		e.leave()
		return SyncResult{}, ctx.Err()
	}
}

func (e *SyncEngine) join() {
	e.waitMu.Lock()
	e.waiters++
	e.waitMu.Unlock()
}

// leave cancels the cycle in flight when the last waiter goes.
func (e *SyncEngine) leave() {
	e.waitMu.Lock()
	defer e.waitMu.Unlock()

	e.waiters--
	if e.waiters == 0 && e.abort != nil {
		e.abort()
	}
}

// track records the cancel func of the cycle in flight. A cycle that
// starts after its caller already left is cancelled at once.
func (e *SyncEngine) track(cancel context.CancelFunc) {
	e.waitMu.Lock()
	defer e.waitMu.Unlock()

	e.abort = cancel
	if cancel != nil && e.waiters == 0 {
		cancel()
	}
}

// Run triggers a cycle immediately and then on every interval until
// ctx is cancelled. Cycle failures are logged and retried on the next tick.
func (e *SyncEngine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "sync loop started", slog.Duration("interval", e.cfg.Interval))

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		_, _ = e.SyncNow(ctx)

		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "sync loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (e *SyncEngine) cycle(ctx context.Context) (res SyncResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sync.cycle")
	defer func() {
		span.SetAttributes(
			attribute.String("sync.outcome", string(res.Outcome)),
			attribute.Int("sync.fetched", res.Fetched),
			attribute.Int("sync.total", res.Total),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()

	e.setState(SyncFetching)
	snapshot := e.store.All()

	fetched, err := e.source.FetchQuotes(ctx, e.cfg.Limit)
	if err != nil {
		return e.fail(ctx, start, domain.NewSyncError("fetch", err))
	}

	e.setState(SyncMerging)

	res = SyncResult{Outcome: OutcomeUpToDate, Fetched: len(fetched), Total: len(snapshot)}

	if len(fetched) > 0 {
		merged := Merge(snapshot, fetched)

		// The commit is not torn by a late cancellation; the in-memory
		// swap and its write land together.
		changed, err := e.store.ReplaceIfChanged(context.WithoutCancel(ctx), merged, ReasonSync)
		if err != nil {
			return e.fail(ctx, start, domain.NewSyncError("merge", err))
		}

		if changed {
			res.Outcome = OutcomeSynced
		}

		res.Total = len(merged)
	}

	res.Duration = time.Since(start)
	e.finish(ctx, res, nil)

	e.logger.InfoContext(ctx, "sync cycle completed",
		slog.String("outcome", string(res.Outcome)),
		slog.Int("fetched", res.Fetched),
		slog.Int("total", res.Total),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}

func (e *SyncEngine) fail(ctx context.Context, start time.Time, err error) (SyncResult, error) {
	res := SyncResult{Outcome: OutcomeFailed, Duration: time.Since(start)}
	e.finish(ctx, res, err)

	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}

	e.logger.Log(ctx, level, "sync cycle failed, will retry next tick",
		slog.Any("error", err),
		slog.Duration("duration", res.Duration),
	)

	return res, err
}

func (e *SyncEngine) finish(ctx context.Context, res SyncResult, err error) {
	now := time.Now()

	e.mu.Lock()
	e.status.State = SyncIdle
	e.status.LastOutcome = res.Outcome
	e.status.LastRun = now
	e.status.Cycles++

	if err != nil {
		e.status.State = SyncFailed
		e.status.LastError = err.Error()
	} else {
		e.status.LastError = ""
		e.status.LastSuccess = now
	}
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.RecordSyncCycle(ctx, string(res.Outcome), res.Duration)
	}
}

func (e *SyncEngine) setState(s SyncState) {
	e.mu.Lock()
	e.status.State = s
	e.mu.Unlock()
}

// Merge keeps every local quote whose text does not appear among the
// fetched quotes, then appends the fetched quotes. Fetched duplicates
// collapse to their first occurrence.
func Merge(local, fetched []domain.Quote) []domain.Quote {
	server := make([]domain.Quote, 0, len(fetched))

	for _, q := range fetched {
		if domain.IndexOf(server, q) >= 0 {
			continue
		}

		server = append(server, q)
	}

	merged := make([]domain.Quote, 0, len(local)+len(server))

	for _, q := range local {
		if domain.IndexOf(server, q) >= 0 {
			continue
		}

		merged = append(merged, q)
	}

	return append(merged, server...)
}
