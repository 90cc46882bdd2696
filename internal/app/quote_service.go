// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// DefaultMirrorTimeout bounds each outward POST of an added or edited quote.
const DefaultMirrorTimeout = 10 * time.Second

// EditSession pins a position to the store revision it was opened at.
// Saving it after any other mutation fails with a NotFoundError.
type EditSession struct {
	Position int          `json:"position"`
	Original domain.Quote `json:"original"`
	Revision uint64       `json:"revision"`
}

// QuoteService is the presentation-layer contract over the store.
// It depends on port interfaces, not concrete implementations.
type QuoteService struct {
	store  *Store
	kv     ports.KeyValueStore
	remote ports.RemoteQuoteSource
	sync   *SyncEngine
	logger *slog.Logger

	mirrorTimeout time.Duration
	mirrors       sync.WaitGroup
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	Store *Store

	// KV holds the persisted filter selection.
	KV ports.KeyValueStore

	// Remote receives outward mirrors of added and edited quotes. Optional.
	Remote ports.RemoteQuoteSource

	// Sync backs RequestSync. Optional.
	Sync *SyncEngine

	MirrorTimeout time.Duration
	Logger        *slog.Logger
}

// NewQuoteService creates a new quote service with the provided dependencies.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.MirrorTimeout
	if timeout <= 0 {
		timeout = DefaultMirrorTimeout
	}

	return &QuoteService{
		store:         cfg.Store,
		kv:            cfg.KV,
		remote:        cfg.Remote,
		sync:          cfg.Sync,
		logger:        logger.With(slog.String("component", "quote-service")),
		mirrorTimeout: timeout,
	}
}

// RequestFilter persists category as the selection and returns its view.
// A blank category selects All.
func (s *QuoteService) RequestFilter(ctx context.Context, category string) View {
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.CategoryAll
	}

	s.saveSelection(ctx, category)

	return BuildView(s.store.All(), category)
}

// CurrentView returns the view for the persisted selection.
func (s *QuoteService) CurrentView(ctx context.Context) View {
	return BuildView(s.store.All(), s.selection(ctx))
}

// Selection returns the persisted filter, or All.
func (s *QuoteService) Selection(ctx context.Context) string {
	return s.selection(ctx)
}

// Categories returns All followed by the distinct store categories.
func (s *QuoteService) Categories() []string {
	return Categories(s.store.All())
}

// Quotes projects the store for selector without touching the selection.
func (s *QuoteService) Quotes(selector string) []ProjectedQuote {
	if selector == "" {
		selector = domain.CategoryAll
	}

	return Project(s.store.All(), selector)
}

// RequestAdd validates and appends a quote, then mirrors it outward.
func (s *QuoteService) RequestAdd(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.store.Add(ctx, q); err != nil {
		s.logger.InfoContext(ctx, "add rejected", slog.Any("error", err))
		return domain.Quote{}, err
	}

	s.logger.InfoContext(ctx, "quote added", slog.String("category", q.Category))
	s.mirror(ctx, q)

	return q, nil
}

// BeginEdit opens an edit session for the quote at position.
func (s *QuoteService) BeginEdit(position int) (EditSession, error) {
	q, rev, err := s.store.At(position)
	if err != nil {
		return EditSession{}, err
	}

	return EditSession{Position: position, Original: q, Revision: rev}, nil
}

// SaveEdit replaces the session's quote if nothing else changed the store
// since BeginEdit.
func (s *QuoteService) SaveEdit(ctx context.Context, session EditSession, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	rev := session.Revision
	if err := s.store.replaceAt(ctx, session.Position, q, &rev); err != nil {
		s.logger.InfoContext(ctx, "stale edit session rejected",
			slog.Int("position", session.Position),
			slog.Uint64("revision", session.Revision),
		)

		return domain.Quote{}, err
	}

	s.mirror(ctx, q)

	return q, nil
}

// RequestEdit replaces the quote at position directly.
func (s *QuoteService) RequestEdit(ctx context.Context, position int, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	if err := s.store.ReplaceAt(ctx, position, q); err != nil {
		return domain.Quote{}, err
	}

	s.mirror(ctx, q)

	return q, nil
}

// RequestDelete removes the quote at position and returns it.
func (s *QuoteService) RequestDelete(ctx context.Context, position int) (domain.Quote, error) {
	removed, err := s.store.RemoveAt(ctx, position)
	if err != nil {
		return domain.Quote{}, err
	}

	s.logger.InfoContext(ctx, "quote deleted", slog.Int("position", position))

	return removed, nil
}

// RequestImport merges an import document using text+category identity.
// The document is validated completely before the store changes.
func (s *QuoteService) RequestImport(ctx context.Context, doc []byte) (ImportResult, error) {
	change := stagedChange[[]byte, []domain.Quote, ImportPlan, ImportResult]{
		name:   "import",
		decode: DecodeDocument,
		plan:   s.store.PlanImport,
		verify: func(records []domain.Quote, plan ImportPlan) error {
			if len(plan.Add)+plan.Skipped != len(records) {
				return domain.NewValidationError("document", "import plan does not cover every record")
			}

			for _, q := range plan.Add {
				if err := q.Validate(); err != nil {
					return err
				}
			}

			return nil
		},
		commit: s.store.ApplyImport,
	}

	res, err := change.run(ctx, doc)
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.InfoContext(ctx, "import merged",
		slog.Int("added", res.Added),
		slog.Int("skipped", res.Skipped),
	)

	return res, nil
}

// RequestExport returns the export document and its file name.
func (s *QuoteService) RequestExport(_ context.Context) ([]byte, string, error) {
	doc, err := Export(s.store.All())
	if err != nil {
		return nil, "", err
	}

	return doc, ExportFileName, nil
}

// RequestRandom picks a random quote and resets the selection to All.
func (s *QuoteService) RequestRandom(ctx context.Context, rng Rand) (domain.Quote, error) {
	q, err := s.store.Random(rng)
	if err != nil {
		return domain.Quote{}, err
	}

	s.saveSelection(ctx, domain.CategoryAll)

	return q, nil
}

// OnStoreChanged subscribes fn to store changes.
func (s *QuoteService) OnStoreChanged(fn Listener) (unsubscribe func()) {
	return s.store.Subscribe(fn)
}

// RequestSync runs a sync cycle, joining one already in flight.
func (s *QuoteService) RequestSync(ctx context.Context) (SyncResult, error) {
	if s.sync == nil {
		return SyncResult{}, domain.NewUnavailableError("sync", "disabled")
	}

	return s.sync.SyncNow(ctx)
}

// SyncStatus reports the engine state, or false when sync is disabled.
func (s *QuoteService) SyncStatus() (SyncStatus, bool) {
	if s.sync == nil {
		return SyncStatus{}, false
	}

	return s.sync.Status(), true
}

// Wait blocks until outstanding mirror requests finish.
func (s *QuoteService) Wait() {
	s.mirrors.Wait()
}

// mirror posts q to the remote source in the background. Failures are
// logged and never affect the store.
func (s *QuoteService) mirror(ctx context.Context, q domain.Quote) {
	if s.remote == nil {
		return
	}

	s.mirrors.Add(1)

	go func() {
		defer s.mirrors.Done()

		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
		defer cancel()

		echoed, err := s.remote.PostQuote(mctx, q)
		if err != nil {
			s.logger.WarnContext(mctx, "mirroring quote failed", slog.Any("error", err))
			return
		}

		if echoed != nil {
			s.logger.DebugContext(mctx, "quote mirrored", slog.String("echoed", echoed.Text))
		}
	}()
}

func (s *QuoteService) selection(ctx context.Context) string {
	v, ok, err := s.kv.Get(ctx, ports.KeySelectedCategory)
	if err != nil {
		s.logger.WarnContext(ctx, "reading selection failed", slog.Any("error", err))
		return domain.CategoryAll
	}

	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return domain.CategoryAll
	}

	return v
}

func (s *QuoteService) saveSelection(ctx context.Context, category string) {
	if err := s.kv.Set(ctx, ports.KeySelectedCategory, category); err != nil {
		s.logger.WarnContext(ctx, "persisting selection failed",
			slog.Any("error", domain.NewStorageError("write", ports.KeySelectedCategory, err)),
		)
	}
}
