package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// eventBuffer is how many change events a slow SSE client may lag behind
// before further events are dropped for it.
const eventBuffer = 16

// QuoteHandler handles quote-related HTTP endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		service: service,
	}
}

// ListQuotes handles GET /api/v1/quotes?category=
// Lists the quotes in one category (default All) with their store positions.
// The persisted selection is not changed.
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var query dto.CategoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}

	selector := query.Category
	if selector == "" {
		selector = domain.CategoryAll
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Category: selector,
		Quotes:   dto.NewProjectedQuotes(h.service.Quotes(selector)),
	})
}

// GetRandomQuote handles GET /api/v1/quotes/random
// Returns a random quote and resets the selection to All.
func (h *QuoteHandler) GetRandomQuote(c *gin.Context) {
	quote, err := h.service.RequestRandom(c.Request.Context(), nil)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// AddQuote handles POST /api/v1/quotes
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.QuoteRequest
	if !bind(c, &req) {
		return
	}

	quote, err := h.service.RequestAdd(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// EditQuote handles PUT /api/v1/quotes/:position
// Replaces the quote at position in one step.
func (h *QuoteHandler) EditQuote(c *gin.Context) {
	position, ok := positionParam(c)
	if !ok {
		return
	}

	var req dto.QuoteRequest
	if !bind(c, &req) {
		return
	}

	quote, err := h.service.RequestEdit(c.Request.Context(), position, req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// DeleteQuote handles DELETE /api/v1/quotes/:position
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	position, ok := positionParam(c)
	if !ok {
		return
	}

	removed, err := h.service.RequestDelete(c.Request.Context(), position)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(removed))
}

// BeginEdit handles POST /api/v1/quotes/:position/edit
// Opens an edit session pinned to the current store revision.
func (h *QuoteHandler) BeginEdit(c *gin.Context) {
	position, ok := positionParam(c)
	if !ok {
		return
	}

	session, err := h.service.BeginEdit(position)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewEditSession(session))
}

// SaveEdit handles PUT /api/v1/edits
// A session opened before any other mutation is rejected with 404.
func (h *QuoteHandler) SaveEdit(c *gin.Context) {
	var req dto.SaveEditRequest
	if !bind(c, &req) {
		return
	}

	quote, err := h.service.SaveEdit(c.Request.Context(), req.Session.ToApp(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Categories handles GET /api/v1/categories
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Categories())
}

// GetFilter handles GET /api/v1/filter
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.CurrentView(c.Request.Context()))
}

// SetFilter handles PUT /api/v1/filter
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest
	if !bind(c, &req) {
		return
	}

	c.JSON(http.StatusOK, h.service.RequestFilter(c.Request.Context(), req.Category))
}

// Export handles GET /api/v1/export
// The document is served as an attachment.
func (h *QuoteHandler) Export(c *gin.Context) {
	doc, name, err := h.service.RequestExport(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", doc)
}

// Import handles POST /api/v1/import
// The request body is the raw import document.
func (h *QuoteHandler) Import(c *gin.Context) {
	doc, err := c.GetRawData()
	if err != nil {
		badRequest(c, "reading request body: "+err.Error())
		return
	}

	res, err := h.service.RequestImport(c.Request.Context(), doc)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Sync handles POST /api/v1/sync
// Runs a cycle now, joining one already in flight.
func (h *QuoteHandler) Sync(c *gin.Context) {
	res, err := h.service.RequestSync(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// syncStatusResponse flattens the engine status next to an enabled flag.
type syncStatusResponse struct {
	Enabled bool `json:"enabled"`
	*app.SyncStatus
}

// SyncStatus handles GET /api/v1/sync
func (h *QuoteHandler) SyncStatus(c *gin.Context) {
	status, ok := h.service.SyncStatus()
	if !ok {
		c.JSON(http.StatusOK, syncStatusResponse{})
		return
	}

	c.JSON(http.StatusOK, syncStatusResponse{Enabled: true, SyncStatus: &status})
}

// Events handles GET /api/v1/events
// Streams a "view" event for the current selection, then one "change"
// event per store change until the client goes away.
func (h *QuoteHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)

	events := make(chan app.ChangeEvent, eventBuffer)
	unsubscribe := h.service.OnStoreChanged(func(evt app.ChangeEvent) {
		select {
		case events <- evt:
		default:
			logger.Warn("dropping change event for slow client", slog.Uint64("revision", evt.Revision))
		}
	})
	defer unsubscribe()

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	sentView := false

	c.Stream(func(_ io.Writer) bool {
		if !sentView {
			sentView = true

			c.SSEvent("view", h.service.CurrentView(ctx))

			return true
		}

		select {
		case <-ctx.Done():
			return false
		case evt := <-events:
			c.SSEvent("change", evt)
			return true
		}
	})
}

// RegisterQuoteRoutes registers request/response quote routes on the given
// router group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.GetRandomQuote)
	quotes.PUT("/:position", h.EditQuote)
	quotes.DELETE("/:position", h.DeleteQuote)
	quotes.POST("/:position/edit", h.BeginEdit)

	rg.PUT("/edits", h.SaveEdit)
	rg.GET("/categories", h.Categories)
	rg.GET("/filter", h.GetFilter)
	rg.PUT("/filter", h.SetFilter)
	rg.GET("/export", h.Export)
	rg.POST("/import", h.Import)
	rg.GET("/sync", h.SyncStatus)
	rg.POST("/sync", h.Sync)
}

// RegisterStreamRoutes registers long-lived routes. The group must not
// carry a request timeout.
func (h *QuoteHandler) RegisterStreamRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.Events)
}

// bind decodes and validates a JSON body, writing a 400 on failure.
func bind(c *gin.Context, v any) bool {
	err := dto.BindAndValidate(c, v)
	if err == nil {
		return true
	}

	if dto.IsValidationError(err) {
		dto.Fail(c, dto.ErrorCodeValidation, "request validation failed", dto.ValidationErrors(err))
		return false
	}

	badRequest(c, err.Error())

	return false
}

// positionParam binds the :position segment, writing a 400 on failure.
func positionParam(c *gin.Context) (int, bool) {
	var uri dto.PositionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, "position must be an integer")
		return 0, false
	}

	return *uri.Position, true
}

func badRequest(c *gin.Context, message string) {
	dto.Fail(c, dto.ErrorCodeBadRequest, message, nil)
}
