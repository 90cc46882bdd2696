package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

const (
	postsPath = "/posts"

	// mirrorUserID is the author id attached to every mirrored post.
	mirrorUserID = 1
)

// PostsClientConfig contains configuration for the posts client.
type PostsClientConfig struct {
	// Client is the HTTP client to use for requests.
	// The client's BaseURL should point at the posts API root.
	Client *clients.Client

	// Logger is the structured logger.
	Logger *slog.Logger
}

// PostsClient implements ports.RemoteQuoteSource over a JSONPlaceholder-style
// posts API.
type PostsClient struct {
	client *clients.Client
	name   string
	logger *slog.Logger
}

// NewPostsClient creates a new posts client adapter.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewPostsClient(cfg PostsClientConfig) *PostsClient {
	if cfg.Client == nil {
		panic("PostsClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PostsClient{
		client: cfg.Client,
		name:   cfg.Client.ServiceName(),
		logger: logger.With(slog.String("component", "acl.PostsClient")),
	}
}

// post is the remote DTO. It never leaves this package.
type post struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// FetchQuotes returns the first limit posts as server quotes. Posts with a
// blank title are dropped after the limit is applied.
func (c *PostsClient) FetchQuotes(ctx context.Context, limit int) ([]domain.Quote, error) {
	c.logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", postsPath))

	resp, err := c.client.Get(ctx, postsPath)

	var posts []post
	if err := c.decode(resp, err, "fetch posts", &posts); err != nil {
		return nil, err
	}

	received := len(posts)
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	quotes := make([]domain.Quote, 0, len(posts))
	for i := range posts {
		if q, ok := translatePost(&posts[i]); ok {
			quotes = append(quotes, q)
		}
	}

	c.logger.DebugContext(ctx, "fetched posts",
		slog.Int("received", received),
		slog.Int("kept", len(quotes)),
	)

	return quotes, nil
}

// PostQuote mirrors q as a new post and returns the echoed title as a
// server quote.
func (c *PostsClient) PostQuote(ctx context.Context, q domain.Quote) (*domain.Quote, error) {
	payload, err := json.Marshal(post{UserID: mirrorUserID, Title: q.Text, Body: q.Category})
	if err != nil {
		return nil, fmt.Errorf("encoding post: %w", err)
	}

	resp, err := c.client.Post(ctx, postsPath, payload)

	var echoed post
	if err := c.decode(resp, err, "create post", &echoed); err != nil {
		return nil, err
	}

	c.logger.Log(ctx, logging.LevelTrace, "post created", slog.Int("id", echoed.ID))

	return &domain.Quote{Text: strings.TrimSpace(echoed.Title), Category: domain.ServerCategory}, nil
}

// decode reads a successful JSON response into v and maps everything else
// to a domain error. The body is always closed.
func (c *PostsClient) decode(resp *http.Response, err error, operation string, v any) error {
	if err != nil {
		return mapFailure(c.name, operation, nil, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return mapFailure(c.name, operation, resp, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return domain.NewUnavailableError(c.name, fmt.Sprintf("%s: decoding response: %v", operation, err))
	}

	return nil
}

// translatePost maps a post to a server quote. Blank titles have no quote.
func translatePost(p *post) (domain.Quote, bool) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return domain.Quote{}, false
	}

	return domain.Quote{Text: title, Category: domain.ServerCategory}, true
}

// Client returns the underlying HTTP client.
func (c *PostsClient) Client() *clients.Client {
	return c.client
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *PostsClient) Name() string {
	return c.name
}

// Check reports the remote as unhealthy while its circuit is open, and
// otherwise fetches a single post.
// Implements ports.HealthChecker.
func (c *PostsClient) Check(ctx context.Context) error {
	if c.client.CircuitState() == clients.StateOpen {
		return clients.ErrCircuitOpen
	}

	resp, err := c.client.Get(ctx, postsPath+"/1")
	if err != nil {
		return mapFailure(c.name, "health check", nil, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return mapFailure(c.name, "health check", resp, nil)
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
