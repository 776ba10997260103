// Package mentions holds the read-only table of historical social media
// mentions and the aggregations the dashboard draws from it.
package mentions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"brandguard/internal/model"
)

// AllBrands selects every row regardless of brand.
const AllBrands = "all"

var ErrEmptyFile = errors.New("csv file has no header row")

// Mention is one historical post. Label is empty when Sentiment is not one of
// the known labels.
type Mention struct {
	ID        string      `json:"id,omitempty"`
	Brand     string      `json:"brand"`
	Sentiment string      `json:"sentiment"`
	Label     model.Label `json:"-"`
	Text      string      `json:"text"`
}

// Table is immutable once loaded and safe for concurrent readers.
type Table struct {
	rows    []Mention
	mapping ColumnMapping
}

// NewTable builds a table from already parsed rows.
func NewTable(rows []Mention, mapping ColumnMapping) *Table {
	for i := range rows {
		if rows[i].Label == "" {
			rows[i].Label, _ = model.ParseLabel(rows[i].Sentiment)
		}
	}
	return &Table{rows: rows, mapping: mapping}
}

// LoadFile opens path and calls Load.
func LoadFile(path string, columns ColumnMapping) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open mentions file: %w", err)
	}
	defer f.Close()

	t, err := Load(f, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load parses a mentions CSV. Fields left empty in columns are guessed from
// the header with AutoMap.
func Load(r io.Reader, columns ColumnMapping) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("could not read header row: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	mapping := columns
	if !columns.complete() {
		auto, err := AutoMap(header)
		if err != nil {
			return nil, err
		}
		mapping = columns.Merge(auto)
	}
	idCol, textCol, brandCol, sentCol, err := mapping.indexes(header)
	if err != nil {
		return nil, err
	}

	field := func(record []string, i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Mention
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read mentions: %w", err)
		}
		rows = append(rows, Mention{
			ID:        field(record, idCol),
			Brand:     field(record, brandCol),
			Sentiment: field(record, sentCol),
			Text:      field(record, textCol),
		})
	}
	return NewTable(rows, mapping), nil
}

// Len returns the number of mentions.
func (t *Table) Len() int { return len(t.rows) }

// Mapping reports which headers were used for each field.
func (t *Table) Mapping() ColumnMapping { return t.mapping }

// Head returns up to n rows from the top of the table.
func (t *Table) Head(n int) []Mention {
	n = min(max(n, 0), len(t.rows))
	out := make([]Mention, n)
	copy(out, t.rows[:n])
	return out
}

// Brands returns the distinct non-empty brands, sorted.
func (t *Table) Brands() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range t.rows {
		if m.Brand == "" {
			continue
		}
		if _, ok := seen[m.Brand]; !ok {
			seen[m.Brand] = struct{}{}
			out = append(out, m.Brand)
		}
	}
	sort.Strings(out)
	return out
}

// Filter returns the rows for brand, compared case-insensitively. AllBrands
// returns every row.
func (t *Table) Filter(brand string) []Mention {
	brand = strings.TrimSpace(brand)
	if strings.EqualFold(brand, AllBrands) {
		return t.rows
	}
	var out []Mention
	for _, m := range t.rows {
		if strings.EqualFold(m.Brand, brand) {
			out = append(out, m)
		}
	}
	return out
}

// Sample draws min(n, Len) distinct rows.
func (t *Table) Sample(rng *rand.Rand, n int) []Mention {
	n = min(max(n, 0), len(t.rows))
	out := make([]Mention, 0, n)
	for _, i := range rng.Perm(len(t.rows))[:n] {
		out = append(out, t.rows[i])
	}
	return out
}

// Labelled returns the text and label of every row whose sentiment is a known
// label, in table order.
func (t *Table) Labelled() ([]string, []model.Label) {
	var docs []string
	var labels []model.Label
	for _, m := range t.rows {
		if m.Label == "" || strings.TrimSpace(m.Text) == "" {
			continue
		}
		docs = append(docs, m.Text)
		labels = append(labels, m.Label)
	}
	return docs, labels
}
