package app

import (
	"fmt"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// ProjectedQuote is a quote as displayed in a filtered view.
// Position always indexes the unfiltered store.
type ProjectedQuote struct {
	domain.Quote

	Position int `json:"position"`
}

// Project returns the quotes matching selector, each tagged with its
// position in quotes. domain.CategoryAll matches everything; any other
// selector must equal the category exactly.
func Project(quotes []domain.Quote, selector string) []ProjectedQuote {
	out := make([]ProjectedQuote, 0, len(quotes))

	for i, q := range quotes {
		if selector != domain.CategoryAll && q.Category != selector {
			continue
		}

		out = append(out, ProjectedQuote{Quote: q, Position: i})
	}

	return out
}

// Categories returns domain.CategoryAll followed by each distinct
// category in order of first appearance. Categories differing only in
// case are kept apart.
func Categories(quotes []domain.Quote) []string {
	out := []string{domain.CategoryAll}
	seen := make(map[string]struct{}, len(quotes))

	for _, q := range quotes {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}

	return out
}

// View is everything a presentation layer needs to render one filter state.
type View struct {
	Selected   string           `json:"selected"`
	Header     string           `json:"header"`
	Categories []string         `json:"categories"`
	Items      []ProjectedQuote `json:"items"`
	Empty      bool             `json:"empty"`
}

// BuildView projects quotes for selector. An empty selector means All.
func BuildView(quotes []domain.Quote, selector string) View {
	if selector == "" {
		selector = domain.CategoryAll
	}

	items := Project(quotes, selector)

	return View{
		Selected:   selector,
		Header:     viewHeader(selector),
		Categories: Categories(quotes),
		Items:      items,
		Empty:      len(items) == 0,
	}
}

func viewHeader(selector string) string {
	if selector == domain.CategoryAll {
		return "All Quotes"
	}

	return fmt.Sprintf("Quotes in %q", selector)
}
