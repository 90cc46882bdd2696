// Package domain contains core business entities and rules.
package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// CategoryAll is the selector that matches every category.
	CategoryAll = "All"

	// ServerCategory is assigned to every quote received from the remote source.
	ServerCategory = "Server"
)

// SeedQuote is the single record a fresh store starts with.
var SeedQuote = Quote{
	Text:     "The only limit to our realization of tomorrow is our doubts of today.",
	Category: "Motivation",
}

// Quote is a short text tagged with a category.
// Quotes carry no identifier; identity is derived from the text (see SameQuote).
type Quote struct {
	// Text is the quotation itself.
	Text string `json:"text"`

	// Category groups quotes for filtering. Compared case-sensitively by the projector.
	Category string `json:"category"`
}

// NewQuote trims both fields and rejects empty values.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(text),
		Category: strings.TrimSpace(category),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate reports a ValidationError when either field is blank or is
// not valid UTF-8. Invalid bytes would not survive a JSON round trip.
func (q Quote) Validate() error {
	if err := validateField("text", q.Text); err != nil {
		return err
	}

	return validateField("category", q.Category)
}

func validateField(field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return NewValidationError(field, "is required")
	case !utf8.ValidString(value):
		return NewValidationError(field, "must be valid UTF-8")
	}

	return nil
}

// identityKey folds text the way SameQuote compares it.
func identityKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// SameQuote reports whether a and b denote the same quote.
// Only the text counts, trimmed and case-insensitive; category is ignored.
// This is the rule for add, edit conflicts and sync merges.
func SameQuote(a, b Quote) bool {
	return identityKey(a.Text) == identityKey(b.Text)
}

// SameQuoteAndCategory is the stricter rule used when importing documents,
// so re-categorised copies of a quote can coexist.
func SameQuoteAndCategory(a, b Quote) bool {
	return SameQuote(a, b) && identityKey(a.Category) == identityKey(b.Category)
}

// IndexOf returns the position of the first quote in quotes matching q
// under SameQuote, or -1.
func IndexOf(quotes []Quote, q Quote) int {
	for i := range quotes {
		if SameQuote(quotes[i], q) {
			return i
		}
	}

	return -1
}
