package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// TrainOptions configures Train. Zero values fall back to the defaults noted.
type TrainOptions struct {
	Lowercase   bool
	NgramRange  [2]int // default {1, 1}
	MinDF       int    // default 1
	MaxFeatures int    // 0 keeps every term
	SublinearTF bool
	StopWords   []string
	Alpha       float64 // additive smoothing, default 1.0
}

// DefaultTrainOptions mirrors a stock TF-IDF + multinomial naive Bayes setup.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Lowercase:  true,
		NgramRange: [2]int{1, 1},
		MinDF:      1,
		Alpha:      1.0,
	}
}

var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrSingleClass      = errors.New("training set needs at least two distinct labels")
)

// Train fits a vectorizer and a naive Bayes classifier on labelled documents.
func Train(docs []string, labels []Label, opts TrainOptions) (*Pipeline, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(docs) != len(labels) {
		return nil, fmt.Errorf("%w: %d documents and %d labels", ErrDimensionMismatch, len(docs), len(labels))
	}
	distinct := make(map[Label]struct{})
	for _, l := range labels {
		distinct[l] = struct{}{}
	}
	if len(distinct) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrSingleClass, len(distinct))
	}
	if opts.MinDF < 1 {
		opts.MinDF = 1
	}
	if opts.Alpha <= 0 {
		opts.Alpha = 1.0
	}

	v := &Vectorizer{
		Lowercase:   opts.Lowercase,
		NgramRange:  opts.NgramRange,
		SublinearTF: opts.SublinearTF,
		Norm:        "l2",
		StopWords:   opts.StopWords,
	}
	if err := v.prepare(); err != nil {
		return nil, err
	}

	df := make(map[string]int)
	freq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range v.analyze(doc) {
			freq[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= opts.MinDF {
			terms = append(terms, term)
		}
	}
	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if freq[terms[i]] != freq[terms[j]] {
				return freq[terms[i]] > freq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxFeatures]
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no terms survive min_df=%d", ErrEmptyTrainingSet, opts.MinDF)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	nb := fitNaiveBayes(v, docs, labels, opts.Alpha)
	return NewPipeline(v, nb)
}

func fitNaiveBayes(v *Vectorizer, docs []string, labels []Label, alpha float64) *NaiveBayes {
	classIndex := make(map[Label]int)
	var classes []Label
	for _, l := range labels {
		if _, ok := classIndex[l]; !ok {
			classIndex[l] = 0
			classes = append(classes, l)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	for i, l := range classes {
		classIndex[l] = i
	}

	features := v.Features()
	counts := make([][]float64, len(classes))
	for i := range counts {
		counts[i] = make([]float64, features)
	}
	docsPerClass := make([]float64, len(classes))

	for i, doc := range docs {
		c := classIndex[labels[i]]
		docsPerClass[c]++
		x := v.Transform(doc)
		for k, idx := range x.Indices {
			counts[c][idx] += x.Values[k]
		}
	}

	nb := &NaiveBayes{
		Labels:         classes,
		ClassLogPrior:  make([]float64, len(classes)),
		FeatureLogProb: make([][]float64, len(classes)),
	}
	total := float64(len(docs))
	for c := range classes {
		nb.ClassLogPrior[c] = math.Log(docsPerClass[c] / total)

		var rowSum float64
		for _, x := range counts[c] {
			rowSum += x + alpha
		}
		logSum := math.Log(rowSum)
		row := make([]float64, features)
		for j, x := range counts[c] {
			row[j] = math.Log(x+alpha) - logSum
		}
		nb.FeatureLogProb[c] = row
	}
	return nb
}

// Report summarises an evaluation run.
type Report struct {
	Total     int                     `json:"total" yaml:"total"`
	Correct   int                     `json:"correct" yaml:"correct"`
	Accuracy  float64                 `json:"accuracy" yaml:"accuracy"`
	Confusion map[Label]map[Label]int `json:"confusion" yaml:"confusion"`
}

// Evaluate scores p against labelled documents. Confusion is keyed by the
// expected label, then the predicted one.
func Evaluate(p *Pipeline, docs []string, labels []Label) (Report, error) {
	if len(docs) != len(labels) {
		return Report{}, fmt.Errorf("%w: %d documents and %d labels", ErrDimensionMismatch, len(docs), len(labels))
	}
	r := Report{Confusion: make(map[Label]map[Label]int)}
	for i, doc := range docs {
		got := p.Classify(doc).Label
		want := labels[i]
		if r.Confusion[want] == nil {
			r.Confusion[want] = make(map[Label]int)
		}
		r.Confusion[want][got]++
		r.Total++
		if got == want {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	return r, nil
}
