package engine

import "github.com/riskgate/riskgate/internal/model"

// Engine bundles the two scorers behind the three operations the serving
// layer calls. Scorers are selected once at initialization; the engine
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	quality *QualityScorer
	anomaly *AnomalyScorer
}

// New creates an Engine. Either classifier may be nil: a nil quality
// classifier makes EvaluateQuality fail with ErrModelNotTrained, a nil
// anomaly classifier selects permanent rule-based scoring.
func New(qualityClf, anomalyClf Classifier) *Engine {
	return &Engine{
		quality: NewQualityScorer(qualityClf),
		anomaly: NewAnomalyScorer(anomalyClf),
	}
}

// QualityTrained reports whether the quality path has a model.
func (e *Engine) QualityTrained() bool { return e.quality.Trained() }

// AnomalyModelBacked reports whether the anomaly path has a model.
func (e *Engine) AnomalyModelBacked() bool { return e.anomaly.ModelBacked() }

// EvaluateQuality produces a QualityResult for rec. Fails with
// ErrModelNotTrained when uninitialized.
func (e *Engine) EvaluateQuality(rec model.MetricRecord) (model.QualityResult, error) {
	return e.quality.Evaluate(rec)
}

// EvaluateAnomaly produces an AnomalyResult for rec. Never fails.
func (e *Engine) EvaluateAnomaly(rec model.MetricRecord) model.AnomalyResult {
	return e.anomaly.Evaluate(rec)
}

// Evaluate runs both scorers independently and fuses their results. The
// quality path's ErrModelNotTrained propagates; the anomaly path cannot
// fail.
func (e *Engine) Evaluate(rec model.MetricRecord) (model.Decision, error) {
	quality, err := e.quality.Evaluate(rec)
	if err != nil {
		return model.Decision{}, err
	}
	anomaly := e.anomaly.Evaluate(rec)
	return Fuse(quality, anomaly), nil
}
