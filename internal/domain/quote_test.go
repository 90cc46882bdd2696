package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuote(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		category  string
		want      Quote
		wantField string
	}{
		{
			name:     "trims both fields",
			text:     "  Be yourself  ",
			category: "\tWisdom\n",
			want:     Quote{Text: "Be yourself", Category: "Wisdom"},
		},
		{
			name:      "blank text",
			text:      "   ",
			category:  "Wisdom",
			wantField: "text",
		},
		{
			name:      "blank category",
			text:      "Be yourself",
			category:  "",
			wantField: "category",
		},
		{
			name:      "invalid utf-8 text",
			text:      "bad \xff",
			category:  "Wisdom",
			wantField: "text",
		},
		{
			name:      "invalid utf-8 category",
			text:      "Be yourself",
			category:  "Wis\xfedom",
			wantField: "category",
		},
		{
			name:     "multibyte text is kept",
			text:     " Carpe diem, ça va ",
			category: "Latin",
			want:     Quote{Text: "Carpe diem, ça va", Category: "Latin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewQuote(tt.text, tt.category)

			if tt.wantField != "" {
				var validation *ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tt.wantField, validation.Field)
				assert.Equal(t, Quote{}, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeedQuote_IsValid(t *testing.T) {
	require.NoError(t, SeedQuote.Validate())
}

func TestSameQuote(t *testing.T) {
	tests := []struct {
		name string
		a, b Quote
		want bool
	}{
		{"identical", Quote{"Be yourself", "Wisdom"}, Quote{"Be yourself", "Wisdom"}, true},
		{"case differs", Quote{"Be yourself", "Wisdom"}, Quote{"BE YOURSELF", "Wisdom"}, true},
		{"whitespace differs", Quote{" Be yourself ", "Wisdom"}, Quote{"Be yourself", "Wisdom"}, true},
		{"category ignored", Quote{"Be yourself", "Wisdom"}, Quote{"Be yourself", "wisdom"}, true},
		{"different text", Quote{"Be yourself", "Wisdom"}, Quote{"Be kind", "Wisdom"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameQuote(tt.a, tt.b))
			assert.Equal(t, tt.want, SameQuote(tt.b, tt.a), "must be symmetric")
		})
	}
}

func TestSameQuoteAndCategory(t *testing.T) {
	tests := []struct {
		name string
		a, b Quote
		want bool
	}{
		{"identical", Quote{"X", "Life"}, Quote{"X", "Life"}, true},
		{"category case differs", Quote{"X", "Life"}, Quote{"x", " life "}, true},
		{"category differs", Quote{"X", "Life"}, Quote{"X", "Work"}, false},
		{"text differs", Quote{"X", "Life"}, Quote{"Y", "Life"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameQuoteAndCategory(tt.a, tt.b))
		})
	}
}

func TestIndexOf(t *testing.T) {
	quotes := []Quote{{"A", "One"}, {"B", "Two"}, {"C", "Three"}}

	assert.Equal(t, 1, IndexOf(quotes, Quote{Text: " b "}))
	assert.Equal(t, -1, IndexOf(quotes, Quote{Text: "D"}))
	assert.Equal(t, -1, IndexOf(nil, Quote{Text: "A"}))
}
