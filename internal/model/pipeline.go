package model

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
)

// Prediction is the outcome of classifying one text. Confidence is nil when the
// classifier has no probability estimates.
type Prediction struct {
	Label      Label    `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// Predictor classifies free text.
type Predictor interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// Pipeline chains a vectorizer with a classifier.
type Pipeline struct {
	Vectorizer *Vectorizer
	Classifier Classifier
}

// NewPipeline checks that the two artifacts agree on the feature space.
func NewPipeline(v *Vectorizer, c Classifier) (*Pipeline, error) {
	if v.Features() != c.Features() {
		return nil, fmt.Errorf("%w: vectorizer produces %d features, classifier expects %d",
			ErrDimensionMismatch, v.Features(), c.Features())
	}
	return &Pipeline{Vectorizer: v, Classifier: c}, nil
}

// LoadPipeline reads both artifacts and pairs them.
func LoadPipeline(vectorizer, classifier io.Reader) (*Pipeline, error) {
	v, err := LoadVectorizer(vectorizer)
	if err != nil {
		return nil, err
	}
	c, err := LoadClassifier(classifier)
	if err != nil {
		return nil, err
	}
	return NewPipeline(v, c)
}

// SaveFiles writes both artifacts as JSON to local paths.
func (p *Pipeline) SaveFiles(vectorizerPath, classifierPath string) error {
	if err := writeFile(vectorizerPath, p.Vectorizer.Save); err != nil {
		return fmt.Errorf("save vectorizer: %w", err)
	}
	if err := writeFile(classifierPath, func(w io.Writer) error {
		return SaveClassifier(w, p.Classifier)
	}); err != nil {
		return fmt.Errorf("save classifier: %w", err)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Classify returns the label and, when available, max probability as a
// percentage rounded to two decimals.
func (p *Pipeline) Classify(text string) Prediction {
	x := p.Vectorizer.Transform(text)
	pred := Prediction{Label: p.Classifier.Predict(x)}
	if pc, ok := p.Classifier.(ProbabilisticClassifier); ok {
		probs := pc.PredictProba(x)
		conf := math.Round(probs[argmax(probs)]*100*100) / 100
		pred.Confidence = &conf
	}
	return pred
}

// LocalPredictor serves predictions from an in-process pipeline.
type LocalPredictor struct {
	pipeline *Pipeline
}

func NewLocalPredictor(p *Pipeline) *LocalPredictor {
	return &LocalPredictor{pipeline: p}
}

func (lp *LocalPredictor) Predict(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	return lp.pipeline.Classify(text), nil
}
