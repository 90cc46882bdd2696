package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// ChangeReason names the operation that produced a ChangeEvent.
type ChangeReason string

// Change reasons.
const (
	ReasonLoad   ChangeReason = "load"
	ReasonReload ChangeReason = "reload"
	ReasonAdd    ChangeReason = "add"
	ReasonEdit   ChangeReason = "edit"
	ReasonDelete ChangeReason = "delete"
	ReasonImport ChangeReason = "import"
	ReasonSync   ChangeReason = "sync"
)

// ChangeEvent is delivered to subscribers after every committed mutation.
type ChangeEvent struct {
	Reason   ChangeReason   `json:"reason"`
	Revision uint64         `json:"revision"`
	Quotes   []domain.Quote `json:"quotes"`
}

// Listener receives store change notifications.
type Listener func(ChangeEvent)

// Rand picks a uniform index in [0, n).
type Rand interface {
	IntN(n int) int
}

// Store is the authoritative ordered quote collection.
//
// Every mutation validates, applies and persists inside one critical
// section. Listeners run after the lock is released.
type Store struct {
	kv     ports.KeyValueStore
	logger *slog.Logger

	mu       sync.Mutex
	quotes   []domain.Quote
	revision uint64
	degraded error

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore creates a store seeded in memory. Call Load to read durable storage.
func NewStore(kv ports.KeyValueStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:        kv,
		logger:    logger.With(slog.String("component", "quote-store")),
		quotes:    []domain.Quote{domain.SeedQuote},
		listeners: make(map[int]Listener),
	}
}

// Load replaces the in-memory sequence with the durable slot.
// An absent or unparseable slot seeds the store; a read failure also
// marks it degraded. Load never fails.
func (s *Store) Load(ctx context.Context) {
	s.load(ctx, ReasonLoad)
}

// Reload is Load triggered by an external write to durable storage.
// It reports whether the in-memory sequence changed.
func (s *Store) Reload(ctx context.Context) bool {
	return s.load(ctx, ReasonReload)
}

func (s *Store) load(ctx context.Context, reason ChangeReason) bool {
	quotes := s.readSlot(ctx)

	s.mu.Lock()

	if slices.Equal(quotes, s.quotes) && reason == ReasonReload {
		s.mu.Unlock()
		return false
	}

	s.quotes = quotes
	evt := s.commitLocked(reason)
	s.mu.Unlock()

	s.notify(evt)

	return true
}

// readSlot returns the decoded slot or the seed sequence.
func (s *Store) readSlot(ctx context.Context) []domain.Quote {
	raw, ok, err := s.kv.Get(ctx, ports.KeyQuotes)
	if err != nil {
		storageErr := domain.NewStorageError("read", ports.KeyQuotes, err)
		s.setDegraded(storageErr)
		s.logger.WarnContext(ctx, "durable storage unreadable, continuing in memory",
			slog.Any("error", storageErr),
		)

		return []domain.Quote{domain.SeedQuote}
	}

	if !ok {
		s.logger.DebugContext(ctx, "no stored quotes, seeding")
		return []domain.Quote{domain.SeedQuote}
	}

	var quotes []domain.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil || quotes == nil {
		s.logger.ErrorContext(ctx, "stored quotes are corrupt, seeding",
			slog.Any("error", err),
		)

		return []domain.Quote{domain.SeedQuote}
	}

	return quotes
}

// Persist writes the full sequence to the durable slot.
// A failure marks the store degraded and is returned for callers that
// want to report it; the in-memory state is unaffected either way.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	doc, err := encodeQuotes(s.quotes)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	if err := s.kv.Set(ctx, ports.KeyQuotes, string(doc)); err != nil {
		storageErr := domain.NewStorageError("write", ports.KeyQuotes, err)
		s.degraded = storageErr
		s.logger.WarnContext(ctx, "durable storage write failed, continuing in memory",
			slog.Any("error", storageErr),
		)

		return storageErr
	}

	s.degraded = nil

	return nil
}

// Add appends q, trimmed, unless a quote with the same text already exists.
func (s *Store) Add(ctx context.Context, q domain.Quote) error {
	q, err := domain.NewQuote(q.Text, q.Category)
	if err != nil {
		return err
	}

	s.mu.Lock()

	if pos := domain.IndexOf(s.quotes, q); pos >= 0 {
		s.mu.Unlock()
		return domain.NewDuplicateError(q.Text, pos)
	}

	s.quotes = append(s.quotes, q)
	_ = s.persistLocked(ctx)
	evt := s.commitLocked(ReasonAdd)
	s.mu.Unlock()

	s.notify(evt)

	return nil
}

// ReplaceAt overwrites the quote at pos with q, trimmed. Other records
// are not checked for duplicates.
func (s *Store) ReplaceAt(ctx context.Context, pos int, q domain.Quote) error {
	return s.replaceAt(ctx, pos, q, nil)
}

// replaceAt optionally requires the store to still be at revision want.
func (s *Store) replaceAt(ctx context.Context, pos int, q domain.Quote, want *uint64) error {
	q, err := domain.NewQuote(q.Text, q.Category)
	if err != nil {
		return err
	}

	s.mu.Lock()

	if pos < 0 || pos >= len(s.quotes) || (want != nil && *want != s.revision) {
		s.mu.Unlock()
		return domain.NewPositionNotFoundError(pos)
	}

	s.quotes[pos] = q
	_ = s.persistLocked(ctx)
	evt := s.commitLocked(ReasonEdit)
	s.mu.Unlock()

	s.notify(evt)

	return nil
}

// RemoveAt deletes the quote at pos and returns it.
func (s *Store) RemoveAt(ctx context.Context, pos int) (domain.Quote, error) {
	s.mu.Lock()

	if pos < 0 || pos >= len(s.quotes) {
		s.mu.Unlock()
		return domain.Quote{}, domain.NewPositionNotFoundError(pos)
	}

	removed := s.quotes[pos]
	s.quotes = slices.Delete(s.quotes, pos, pos+1)
	_ = s.persistLocked(ctx)
	evt := s.commitLocked(ReasonDelete)
	s.mu.Unlock()

	s.notify(evt)

	return removed, nil
}

// At returns the quote at pos together with the current revision.
func (s *Store) At(pos int) (domain.Quote, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.quotes) {
		return domain.Quote{}, s.revision, domain.NewPositionNotFoundError(pos)
	}

	return s.quotes[pos], s.revision, nil
}

// All returns a copy of the current sequence.
func (s *Store) All() []domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.quotes)
}

// Len returns the number of stored quotes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.quotes)
}

// Revision returns the mutation counter.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revision
}

// Random returns a uniformly chosen quote. A nil rng uses math/rand/v2.
func (s *Store) Random(rng Rand) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.quotes) == 0 {
		return domain.Quote{}, domain.NewNotFoundError("quote", "")
	}

	var i int
	if rng != nil {
		i = rng.IntN(len(s.quotes))
	} else {
		i = rand.IntN(len(s.quotes)) //nolint:gosec // display only
	}

	return s.quotes[i], nil
}

// ImportPlan is the set of records an import would append.
type ImportPlan struct {
	Add      []domain.Quote
	Skipped  int
	Revision uint64
}

// PlanImport dedups records against the store and against each other
// using text+category identity. It does not mutate the store.
func (s *Store) PlanImport(records []domain.Quote) ImportPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := planImport(s.quotes, records)
	plan.Revision = s.revision

	return plan
}

func planImport(existing, records []domain.Quote) ImportPlan {
	var plan ImportPlan

	for _, r := range records {
		dup := slices.ContainsFunc(existing, func(q domain.Quote) bool {
			return domain.SameQuoteAndCategory(q, r)
		}) || slices.ContainsFunc(plan.Add, func(q domain.Quote) bool {
			return domain.SameQuoteAndCategory(q, r)
		})

		if dup {
			plan.Skipped++
			continue
		}

		plan.Add = append(plan.Add, r)
	}

	return plan
}

// ApplyImport appends a planned import and persists once. If the store
// moved on since planning, the plan is re-evaluated against the current
// sequence so no duplicate slips in.
func (s *Store) ApplyImport(ctx context.Context, plan ImportPlan) ImportResult {
	s.mu.Lock()

	if plan.Revision != s.revision {
		replanned := planImport(s.quotes, plan.Add)
		replanned.Skipped += plan.Skipped
		plan = replanned
	}

	result := ImportResult{Added: len(plan.Add), Skipped: plan.Skipped}
	if len(plan.Add) == 0 {
		s.mu.Unlock()
		return result
	}

	s.quotes = append(s.quotes, plan.Add...)
	_ = s.persistLocked(ctx)
	evt := s.commitLocked(ReasonImport)
	s.mu.Unlock()

	s.notify(evt)

	return result
}

// Import decodes doc and merges its records in one step.
func (s *Store) Import(ctx context.Context, doc []byte) (ImportResult, error) {
	records, err := DecodeDocument(doc)
	if err != nil {
		return ImportResult{}, err
	}

	return s.ApplyImport(ctx, s.PlanImport(records)), nil
}

// ReplaceIfChanged swaps in quotes unless they serialize identically to
// the current sequence. It reports whether a change was committed.
func (s *Store) ReplaceIfChanged(ctx context.Context, quotes []domain.Quote, reason ChangeReason) (bool, error) {
	next, err := encodeQuotes(quotes)
	if err != nil {
		return false, fmt.Errorf("encoding quotes: %w", err)
	}

	s.mu.Lock()

	current, err := encodeQuotes(s.quotes)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("encoding quotes: %w", err)
	}

	if bytes.Equal(current, next) {
		s.mu.Unlock()
		return false, nil
	}

	s.quotes = slices.Clone(quotes)
	_ = s.persistLocked(ctx)
	evt := s.commitLocked(reason)
	s.mu.Unlock()

	s.notify(evt)

	return true, nil
}

// Subscribe registers fn for change notifications. The returned func
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Degraded reports whether durable storage has failed since the last
// successful write.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.degraded != nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "quote-store"
}

// Check implements ports.HealthChecker. A degraded store still serves
// requests, so it reports ports.ErrDegraded rather than failing.
func (s *Store) Check(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded != nil {
		return fmt.Errorf("%w: %v", ports.ErrDegraded, s.degraded)
	}

	return nil
}

func (s *Store) setDegraded(err error) {
	s.mu.Lock()
	s.degraded = err
	s.mu.Unlock()
}

// commitLocked bumps the revision and builds the event to publish.
func (s *Store) commitLocked(reason ChangeReason) ChangeEvent {
	s.revision++

	return ChangeEvent{
		Reason:   reason,
		Revision: s.revision,
		Quotes:   slices.Clone(s.quotes),
	}
}

func (s *Store) notify(evt ChangeEvent) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(evt)
	}
}

// encodeQuotes is the canonical slot serialization. A nil sequence
// encodes as an empty array.
func encodeQuotes(quotes []domain.Quote) ([]byte, error) {
	if quotes == nil {
		quotes = []domain.Quote{}
	}

	return json.Marshal(quotes)
}
