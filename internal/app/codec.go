package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// ExportFileName is the suggested download name for exported documents.
const ExportFileName = "quotes.json"

// ImportResult reports how an import document was merged.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Export renders quotes as a pretty-printed JSON array of {text, category}.
func Export(quotes []domain.Quote) ([]byte, error) {
	if quotes == nil {
		quotes = []domain.Quote{}
	}

	doc, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export document: %w", err)
	}

	return doc, nil
}

// DecodeDocument parses an import document. It must be a JSON array of
// objects, each with non-blank string text and category. Values are
// returned trimmed.
func DecodeDocument(doc []byte) ([]domain.Quote, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, domain.NewInvalidFormatError(-1, "expected a JSON array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, domain.NewInvalidFormatError(-1, err.Error())
	}

	quotes := make([]domain.Quote, 0, len(items))

	for i, item := range items {
		q, err := decodeItem(item)
		if err != nil {
			return nil, domain.NewInvalidFormatError(i, err.Error())
		}

		quotes = append(quotes, q)
	}

	return quotes, nil
}

func decodeItem(item json.RawMessage) (domain.Quote, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return domain.Quote{}, errors.New("expected an object")
	}

	text, err := stringField(fields, "text")
	if err != nil {
		return domain.Quote{}, err
	}

	category, err := stringField(fields, "category")
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{Text: text, Category: category}, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%s is required", name)
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%s must be a string", name)
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s must not be blank", name)
	}

	return v, nil
}
