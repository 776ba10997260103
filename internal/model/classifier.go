package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Classifier kinds understood by LoadClassifier.
const (
	KindLogisticRegression = "logistic_regression"
	KindLinearSVC          = "linear_svc"
	KindMultinomialNB      = "multinomial_nb"
)

// Classifier assigns one of its classes to a document vector.
type Classifier interface {
	Classes() []Label
	Features() int
	Predict(x SparseVector) Label
}

// ProbabilisticClassifier also reports per-class probabilities, aligned with Classes.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(x SparseVector) []float64
}

// classifierFile is the on-disk form shared by every kind.
type classifierFile struct {
	Kind       string   `json:"kind"`
	Classes    []string `json:"classes"`
	MultiClass string   `json:"multi_class,omitempty"`

	Coef      [][]float64 `json:"coef,omitempty"`
	Intercept []float64   `json:"intercept,omitempty"`

	ClassLogPrior  []float64   `json:"class_log_prior,omitempty"`
	FeatureLogProb [][]float64 `json:"feature_log_prob,omitempty"`
}

// LoadClassifier decodes a classifier artifact.
func LoadClassifier(r io.Reader) (Classifier, error) {
	var f classifierFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode classifier: %w", err)
	}

	classes := make([]Label, 0, len(f.Classes))
	for _, c := range f.Classes {
		l, err := ParseLabel(c)
		if err != nil {
			return nil, fmt.Errorf("classifier classes: %w", err)
		}
		classes = append(classes, l)
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("classifier needs at least two classes, got %d", len(classes))
	}

	switch f.Kind {
	case KindLogisticRegression, KindLinearSVC:
		lin := &Linear{
			Labels:     classes,
			Coef:       f.Coef,
			Intercept:  f.Intercept,
			MultiClass: f.MultiClass,
		}
		if err := lin.validate(); err != nil {
			return nil, err
		}
		if f.Kind == KindLinearSVC {
			return &LinearSVC{model: lin}, nil
		}
		return lin, nil
	case KindMultinomialNB:
		nb := &NaiveBayes{
			Labels:         classes,
			ClassLogPrior:  f.ClassLogPrior,
			FeatureLogProb: f.FeatureLogProb,
		}
		if err := nb.validate(); err != nil {
			return nil, err
		}
		return nb, nil
	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", f.Kind)
	}
}

// SaveClassifier writes c in the artifact format read by LoadClassifier.
func SaveClassifier(w io.Writer, c Classifier) error {
	f := classifierFile{}
	for _, l := range c.Classes() {
		f.Classes = append(f.Classes, string(l))
	}
	switch m := c.(type) {
	case *Linear:
		f.Kind = KindLogisticRegression
		f.MultiClass, f.Coef, f.Intercept = m.MultiClass, m.Coef, m.Intercept
	case *LinearSVC:
		f.Kind = KindLinearSVC
		f.Coef, f.Intercept = m.model.Coef, m.model.Intercept
	case *NaiveBayes:
		f.Kind = KindMultinomialNB
		f.ClassLogPrior, f.FeatureLogProb = m.ClassLogPrior, m.FeatureLogProb
	default:
		return fmt.Errorf("cannot save classifier of type %T", c)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Linear is a one-vs-rest or multinomial logistic regression. A binary model may
// carry a single coefficient row whose positive side is the second class.
type Linear struct {
	Labels     []Label
	Coef       [][]float64
	Intercept  []float64
	MultiClass string
}

func (m *Linear) validate() error {
	rows := len(m.Labels)
	if rows == 2 && len(m.Coef) == 1 {
		rows = 1
	}
	if len(m.Coef) != rows || len(m.Intercept) != rows {
		return fmt.Errorf("%w: %d classes but %d coefficient rows and %d intercepts",
			ErrDimensionMismatch, len(m.Labels), len(m.Coef), len(m.Intercept))
	}
	for i, row := range m.Coef {
		if len(row) != len(m.Coef[0]) {
			return fmt.Errorf("%w: coefficient row %d has %d columns", ErrDimensionMismatch, i, len(row))
		}
	}
	switch m.MultiClass {
	case "", "ovr", "multinomial":
	default:
		return fmt.Errorf("unsupported multi_class %q", m.MultiClass)
	}
	return nil
}

func (m *Linear) Classes() []Label { return m.Labels }

func (m *Linear) Features() int { return len(m.Coef[0]) }

func (m *Linear) binary() bool { return len(m.Coef) == 1 }

// Decision returns the raw margins.
func (m *Linear) Decision(x SparseVector) []float64 {
	out := make([]float64, len(m.Coef))
	for i, row := range m.Coef {
		out[i] = x.Dot(row) + m.Intercept[i]
	}
	return out
}

func (m *Linear) Predict(x SparseVector) Label {
	d := m.Decision(x)
	if m.binary() {
		if d[0] > 0 {
			return m.Labels[1]
		}
		return m.Labels[0]
	}
	return m.Labels[argmax(d)]
}

func (m *Linear) PredictProba(x SparseVector) []float64 {
	d := m.Decision(x)
	if m.binary() {
		p := sigmoid(d[0])
		return []float64{1 - p, p}
	}
	if m.MultiClass == "multinomial" {
		return softmax(d)
	}
	probs := make([]float64, len(d))
	var sum float64
	for i, v := range d {
		probs[i] = sigmoid(v)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// LinearSVC shares the linear decision function but has no probability estimates.
type LinearSVC struct {
	model *Linear
}

func (m *LinearSVC) Classes() []Label { return m.model.Labels }

func (m *LinearSVC) Features() int { return m.model.Features() }

func (m *LinearSVC) Predict(x SparseVector) Label { return m.model.Predict(x) }

// NaiveBayes is a multinomial naive Bayes model.
type NaiveBayes struct {
	Labels         []Label
	ClassLogPrior  []float64
	FeatureLogProb [][]float64
}

func (m *NaiveBayes) validate() error {
	if len(m.ClassLogPrior) != len(m.Labels) || len(m.FeatureLogProb) != len(m.Labels) {
		return fmt.Errorf("%w: %d classes but %d priors and %d feature rows",
			ErrDimensionMismatch, len(m.Labels), len(m.ClassLogPrior), len(m.FeatureLogProb))
	}
	for i, row := range m.FeatureLogProb {
		if len(row) != len(m.FeatureLogProb[0]) {
			return fmt.Errorf("%w: feature row %d has %d columns", ErrDimensionMismatch, i, len(row))
		}
	}
	if len(m.FeatureLogProb[0]) == 0 {
		return errors.New("naive bayes model has no features")
	}
	return nil
}

func (m *NaiveBayes) Classes() []Label { return m.Labels }

func (m *NaiveBayes) Features() int { return len(m.FeatureLogProb[0]) }

func (m *NaiveBayes) jointLogLikelihood(x SparseVector) []float64 {
	out := make([]float64, len(m.Labels))
	for i, row := range m.FeatureLogProb {
		out[i] = m.ClassLogPrior[i] + x.Dot(row)
	}
	return out
}

func (m *NaiveBayes) Predict(x SparseVector) Label {
	return m.Labels[argmax(m.jointLogLikelihood(x))]
}

func (m *NaiveBayes) PredictProba(x SparseVector) []float64 {
	return softmax(m.jointLogLikelihood(x))
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(xs []float64) []float64 {
	hi := xs[argmax(xs)]
	out := make([]float64, len(xs))
	var sum float64
	for i, v := range xs {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
