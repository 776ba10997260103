// Package model holds the sentiment artifact pair (a TF-IDF vectorizer and a
// linear classifier) and the predictor built on top of it.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Label is one of the fixed sentiment classes.
type Label string

const (
	Positive   Label = "Positive"
	Negative   Label = "Negative"
	Neutral    Label = "Neutral"
	Irrelevant Label = "Irrelevant"
)

// Labels lists every label in display order.
var Labels = []Label{Positive, Neutral, Negative, Irrelevant}

var ErrUnknownLabel = errors.New("unknown sentiment label")

// ParseLabel matches s against the label set ignoring case and surrounding space.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	for _, l := range Labels {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// Risk levels shown next to a prediction.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
	RiskNone   = "NONE"
)

// Risk maps a label to the brand risk it signals.
func Risk(l Label) string {
	switch l {
	case Positive:
		return RiskLow
	case Neutral:
		return RiskMedium
	case Negative:
		return RiskHigh
	default:
		return RiskNone
	}
}
