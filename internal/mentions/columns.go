package mentions

import (
	"errors"
	"fmt"
	"strings"
)

var ErrColumnNotFound = errors.New("column not found")

// ColumnMapping names the CSV headers holding each mention field. ID is optional.
type ColumnMapping struct {
	ID        string `json:"id" mapstructure:"id"`
	Text      string `json:"text" mapstructure:"text"`
	Brand     string `json:"brand" mapstructure:"brand"`
	Sentiment string `json:"sentiment" mapstructure:"sentiment"`
}

// Positional guesses used when no header looks like the field.
const (
	fallbackSentiment = 2
	fallbackText      = 10
	fallbackBrand     = 5
)

// AutoMap guesses which headers hold the text, brand and sentiment of a mention.
// When several headers match a field the last one wins.
func AutoMap(header []string) (ColumnMapping, error) {
	var m ColumnMapping
	for _, original := range header {
		col := strings.ToLower(strings.TrimSpace(original))

		if strings.Contains(col, "sentiment") && !strings.Contains(col, "conf") && !strings.Contains(col, "gold") {
			m.Sentiment = original
		}

		if strings.Contains(col, "clean_text") ||
			(strings.Contains(col, "text") && !strings.Contains(col, "coord")) ||
			strings.Contains(col, "tweet") {
			if !strings.Contains(col, "sent") {
				m.Text = original
			}
		}

		if strings.Contains(col, "airline") || strings.Contains(col, "brand") || strings.Contains(col, "entity") {
			if !strings.Contains(col, "sent") {
				m.Brand = original
			}
		}

		if col == "id" || strings.HasSuffix(col, " id") || strings.HasSuffix(col, "_id") {
			m.ID = original
		}
	}

	var err error
	if m.Sentiment == "" {
		if m.Sentiment, err = fallback(header, "airline_sentiment", fallbackSentiment); err != nil {
			return m, fmt.Errorf("sentiment: %w", err)
		}
	}
	if m.Text == "" {
		if m.Text, err = fallback(header, "clean_text", fallbackText); err != nil {
			return m, fmt.Errorf("text: %w", err)
		}
	}
	if m.Brand == "" {
		if m.Brand, err = fallback(header, "airline", fallbackBrand); err != nil {
			return m, fmt.Errorf("brand: %w", err)
		}
	}
	return m, nil
}

func fallback(header []string, preferred string, pos int) (string, error) {
	for _, h := range header {
		if h == preferred {
			return h, nil
		}
	}
	if pos < len(header) {
		return header[pos], nil
	}
	return "", fmt.Errorf("%w: no matching header and only %d columns for fallback position %d",
		ErrColumnNotFound, len(header), pos)
}

// Merge fills the empty fields of m from auto.
func (m ColumnMapping) Merge(auto ColumnMapping) ColumnMapping {
	if m.ID == "" {
		m.ID = auto.ID
	}
	if m.Text == "" {
		m.Text = auto.Text
	}
	if m.Brand == "" {
		m.Brand = auto.Brand
	}
	if m.Sentiment == "" {
		m.Sentiment = auto.Sentiment
	}
	return m
}

// complete reports whether every required field is set.
func (m ColumnMapping) complete() bool {
	return m.Text != "" && m.Brand != "" && m.Sentiment != ""
}

// indexes resolves the mapping against a header row. id is -1 when unmapped.
func (m ColumnMapping) indexes(header []string) (id, text, brand, sentiment int, err error) {
	find := func(name string) int {
		for i, h := range header {
			if h == name || strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i
			}
		}
		return -1
	}

	id = -1
	if m.ID != "" {
		if id = find(m.ID); id < 0 {
			return 0, 0, 0, 0, fmt.Errorf("%w: id column %q", ErrColumnNotFound, m.ID)
		}
	}
	if text = find(m.Text); text < 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: text column %q", ErrColumnNotFound, m.Text)
	}
	if brand = find(m.Brand); brand < 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: brand column %q", ErrColumnNotFound, m.Brand)
	}
	if sentiment = find(m.Sentiment); sentiment < 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: sentiment column %q", ErrColumnNotFound, m.Sentiment)
	}
	return id, text, brand, sentiment, nil
}
