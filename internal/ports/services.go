// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// Durable storage slot keys.
const (
	// KeyQuotes holds the JSON array of {text, category} records.
	KeyQuotes = "quotes"

	// KeySelectedCategory holds the last chosen filter as a plain string.
	KeySelectedCategory = "selectedCategory"
)

// KeyValueStore is a durable string-to-string slot store, the
// analogue of browser local storage.
//
// Example usage in application layer:
//
//	raw, ok, err := kv.Get(ctx, ports.KeyQuotes)
//	if err != nil {
//	    // degrade to in-memory operation
//	}
type KeyValueStore interface {
	// Get returns the value stored under key. The boolean is false when
	// the key has never been written.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// RemoteQuoteSource is the remote mock endpoint the sync engine polls.
//
// Key considerations:
//   - Handle timeouts via context deadline
//   - Map transport errors to domain errors
//   - Every fetched quote carries domain.ServerCategory
type RemoteQuoteSource interface {
	// FetchQuotes returns at most limit remote quotes.
	// Returns domain.ErrUnavailable if the endpoint is unreachable or
	// its response cannot be decoded.
	FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error)

	// PostQuote mirrors a quote outward and returns what the endpoint echoed.
	PostQuote(ctx context.Context, q domain.Quote) (*domain.Quote, error)
}

// SyncRecorder receives the outcome of every sync cycle.
// The telemetry package exports these as Prometheus metrics.
type SyncRecorder interface {
	// RecordSyncCycle is called once per completed cycle with its outcome
	// ("synced", "up to date" or "failed") and wall-clock duration.
	RecordSyncCycle(ctx context.Context, outcome string, duration time.Duration)
}
