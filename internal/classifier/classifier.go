// Package classifier loads trained model artifacts and exposes their
// inference capability to the engine.
package classifier

import (
	"math"

	"github.com/rotisserie/eris"
)

// Linear is a logistic model over a fixed-order feature vector. It is the
// serving-side representation of a trained artifact: immutable after load
// and safe for concurrent use.
type Linear struct {
	coefficients []float64
	intercept    float64
}

// NewLinear creates a Linear model from coefficients and intercept.
func NewLinear(coefficients []float64, intercept float64) *Linear {
	c := make([]float64, len(coefficients))
	copy(c, coefficients)
	return &Linear{coefficients: c, intercept: intercept}
}

// PredictProbability returns the positive-class probability for features,
// which must be in the artifact's feature order and of matching length.
func (l *Linear) PredictProbability(features []float64) (float64, error) {
	if len(features) != len(l.coefficients) {
		return 0, eris.Errorf("classifier: feature vector length %d, model expects %d",
			len(features), len(l.coefficients))
	}
	z := l.intercept
	for i, c := range l.coefficients {
		z += c * features[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}
