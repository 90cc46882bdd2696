package dto

import (
	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// QuoteRequest is the body of add and edit requests.
type QuoteRequest struct {
	Text     string `json:"text"     validate:"required,notblank"`
	Category string `json:"category" validate:"required,notblank"`
}

// FilterRequest selects a category. Blank selects All.
type FilterRequest struct {
	Category string `json:"category"`
}

// CategoryQuery is the optional ?category= list filter.
type CategoryQuery struct {
	Category string `form:"category"`
}

// PositionURI binds the :position path segment.
type PositionURI struct {
	Position *int `uri:"position" binding:"required"`
}

// EditSession is the wire form of an open edit.
type EditSession struct {
	Position int          `json:"position" validate:"gte=0"`
	Revision uint64       `json:"revision"`
	Original QuoteRequest `json:"original"`
}

// SaveEditRequest commits an edit session with new values.
type SaveEditRequest struct {
	Session  EditSession `json:"session"`
	Text     string      `json:"text"     validate:"required,notblank"`
	Category string      `json:"category" validate:"required,notblank"`
}

// QuoteResponse is a single quote.
type QuoteResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ProjectedQuoteResponse is a quote with its store position.
type ProjectedQuoteResponse struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ListResponse is the result of listing quotes for one category.
type ListResponse struct {
	Category string                   `json:"category"`
	Quotes   []ProjectedQuoteResponse `json:"quotes"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{Text: q.Text, Category: q.Category}
}

// NewProjectedQuotes converts projector output, never returning nil.
func NewProjectedQuotes(items []app.ProjectedQuote) []ProjectedQuoteResponse {
	out := make([]ProjectedQuoteResponse, len(items))
	for i, it := range items {
		out[i] = ProjectedQuoteResponse{Position: it.Position, Text: it.Text, Category: it.Category}
	}

	return out
}

// NewEditSession converts an app edit session.
func NewEditSession(s app.EditSession) EditSession {
	return EditSession{
		Position: s.Position,
		Revision: s.Revision,
		Original: QuoteRequest{Text: s.Original.Text, Category: s.Original.Category},
	}
}

// ToApp converts the wire session back.
func (s EditSession) ToApp() app.EditSession {
	return app.EditSession{
		Position: s.Position,
		Revision: s.Revision,
		Original: domain.Quote{Text: s.Original.Text, Category: s.Original.Category},
	}
}
