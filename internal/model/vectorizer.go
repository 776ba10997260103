package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const defaultTokenPattern = `(?u)\b\w\w+\b`

var ErrDimensionMismatch = errors.New("dimension mismatch")

// SparseVector is a document vector with Indices sorted ascending.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the dot product of v with a dense row.
func (v SparseVector) Dot(row []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		sum += v.Values[i] * row[idx]
	}
	return sum
}

// Vectorizer converts raw text into TF-IDF weighted sparse vectors.
type Vectorizer struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Lowercase    bool           `json:"lowercase"`
	NgramRange   [2]int         `json:"ngram_range"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         string         `json:"norm"`
	TokenPattern string         `json:"token_pattern,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty"`

	pattern *regexp.Regexp
	stop    map[string]struct{}
}

// LoadVectorizer decodes a vectorizer artifact and prepares it for use.
func LoadVectorizer(r io.Reader) (*Vectorizer, error) {
	var v Vectorizer
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}
	if err := v.init(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Save writes the vectorizer as JSON.
func (v *Vectorizer) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (v *Vectorizer) init() error {
	if len(v.Vocabulary) == 0 {
		return errors.New("vectorizer has an empty vocabulary")
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("%w: %d idf weights for %d terms", ErrDimensionMismatch, len(v.IDF), len(v.Vocabulary))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("term %q has column %d outside [0,%d)", term, idx, len(v.IDF))
		}
	}
	return v.prepare()
}

// prepare validates the analyzer settings and compiles the tokenizer.
func (v *Vectorizer) prepare() error {
	if v.NgramRange[0] == 0 && v.NgramRange[1] == 0 {
		v.NgramRange = [2]int{1, 1}
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("invalid ngram range %v", v.NgramRange)
	}
	switch v.Norm {
	case "", "l1", "l2":
	default:
		return fmt.Errorf("unsupported norm %q", v.Norm)
	}
	if v.TokenPattern != "" && v.TokenPattern != defaultTokenPattern {
		re, err := regexp.Compile(strings.TrimPrefix(v.TokenPattern, "(?u)"))
		if err != nil {
			return fmt.Errorf("compile token pattern: %w", err)
		}
		v.pattern = re
	}
	v.stop = make(map[string]struct{}, len(v.StopWords))
	for _, w := range v.StopWords {
		v.stop[w] = struct{}{}
	}
	return nil
}

// Features reports the width of the vectors produced by Transform.
func (v *Vectorizer) Features() int {
	return len(v.IDF)
}

// Transform vectorizes a single document.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)
	for _, idx := range vec.Indices {
		tf := counts[idx]
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		vec.Values = append(vec.Values, tf*v.IDF[idx])
	}
	normalize(vec.Values, v.Norm)
	return vec
}

// analyze produces the n-gram terms of text.
func (v *Vectorizer) analyze(text string) []string {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	tokens := v.tokenize(text)
	if len(v.stop) > 0 {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, ok := v.stop[t]; !ok {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}
	return ngrams(tokens, v.NgramRange[0], v.NgramRange[1])
}

func (v *Vectorizer) tokenize(text string) []string {
	if v.pattern != nil {
		return v.pattern.FindAllString(text, -1)
	}
	return wordTokens(text)
}

// wordTokens returns runs of two or more letters, digits or underscores.
func wordTokens(text string) []string {
	isWord := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
	}
	var tokens []string
	for _, f := range strings.FieldsFunc(text, func(r rune) bool { return !isWord(r) }) {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func ngrams(tokens []string, minN, maxN int) []string {
	if minN == 1 && maxN == 1 {
		return tokens
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range values {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
