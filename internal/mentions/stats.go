package mentions

import (
	"strings"

	"brandguard/internal/model"
)

// Stats counts mentions per label. Rows with an unknown sentiment only count
// towards Total.
type Stats struct {
	Positive   int `json:"Positive"`
	Neutral    int `json:"Neutral"`
	Negative   int `json:"Negative"`
	Irrelevant int `json:"Irrelevant"`
	Total      int `json:"Total"`
}

func (s *Stats) add(l model.Label) {
	s.Total++
	switch l {
	case model.Positive:
		s.Positive++
	case model.Neutral:
		s.Neutral++
	case model.Negative:
		s.Negative++
	case model.Irrelevant:
		s.Irrelevant++
	}
}

// Count returns the number of mentions with label l.
func (s Stats) Count(l model.Label) int {
	switch l {
	case model.Positive:
		return s.Positive
	case model.Neutral:
		return s.Neutral
	case model.Negative:
		return s.Negative
	case model.Irrelevant:
		return s.Irrelevant
	}
	return 0
}

// Count tallies labels over rows.
func Count(rows []Mention) Stats {
	var s Stats
	for _, m := range rows {
		s.add(m.Label)
	}
	return s
}

// Stats counts the labels of brand's mentions.
func (t *Table) Stats(brand string) Stats {
	return Count(t.Filter(brand))
}

// Histogram buckets values into equal-width bins. Edges has len(Counts)+1 entries.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// LengthHistogram buckets the word counts of brand's mentions.
func (t *Table) LengthHistogram(brand string, bins int) Histogram {
	if bins < 1 {
		bins = 1
	}
	h := Histogram{Counts: make([]int, bins)}

	rows := t.Filter(brand)
	if len(rows) == 0 {
		return h
	}

	lengths := make([]int, len(rows))
	lo, hi := -1, -1
	for i, m := range rows {
		n := len(strings.Fields(m.Text))
		lengths[i] = n
		if lo < 0 || n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}

	width := float64(hi-lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	h.Edges = make([]float64, bins+1)
	for i := range h.Edges {
		h.Edges[i] = float64(lo) + width*float64(i)
	}
	for _, n := range lengths {
		b := int(float64(n-lo) / width)
		if b >= bins {
			b = bins - 1
		}
		h.Counts[b]++
	}
	return h
}
