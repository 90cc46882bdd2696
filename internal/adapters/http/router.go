package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds every non-streaming API request.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig is what SetupRouter mounts. Only Logger and AppConfig are
// required; a nil handler leaves its routes out.
type RouterConfig struct {
	Logger        *slog.Logger
	AppConfig     *config.AppConfig
	HealthHandler *handlers.HealthHandler
	QuoteHandler  *handlers.QuoteHandler

	// Timeout applies to /api/v1 request/response routes. Zero disables it.
	Timeout time.Duration

	// Draining ends open event streams when closed. Usually Server.Draining.
	Draining <-chan struct{}
}

// NewDefaultRouterConfig fills a RouterConfig with the default timeout.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	health *handlers.HealthHandler,
	quotes *handlers.QuoteHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: health,
		QuoteHandler:  quotes,
		Timeout:       DefaultRequestTimeout,
	}
}

// SetupRouter installs the middleware chain and routes on engine.
//
// Every request passes recovery, request and correlation IDs, tracing and
// metrics, then access logging. Probes live under /-/ and are neither
// traced nor logged. Under /api/v1 the event stream is mounted without a
// deadline and ends on drain; everything else runs under Timeout.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	if cfg.QuoteHandler == nil {
		return
	}

	api := engine.Group("/api/v1")

	cfg.QuoteHandler.RegisterStreamRoutes(api.Group("", middleware.CancelOnDrain(cfg.Draining)))

	timed := api.Group("")
	if cfg.Timeout > 0 {
		timed.Use(middleware.Timeout(cfg.Timeout))
	}

	cfg.QuoteHandler.RegisterQuoteRoutes(timed)
}
