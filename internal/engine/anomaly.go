package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/model"
)

// Fallback scoring weights: independently-weighted contributions that are
// added only when the field is present in the record.
const (
	fallbackWeightVulns    = 0.6
	fallbackWeightRisk     = 0.3
	fallbackWeightPassRate = 0.1
)

// Severity thresholds differ between the two paths: model scores are
// better-calibrated, so the model-backed cutoffs sit higher. The asymmetry
// is deliberate and must not be unified.
const (
	modelAnomalyCutoff = 0.5
	modelHighCutoff    = 0.8
	modelMediumCutoff  = 0.6
	ruleAnomalyCutoff  = 0.4
	ruleHighCutoff     = 0.75
	ruleMediumCutoff   = 0.5
)

// AnomalyScorer flags anomalous deployments. It is model-backed when a
// trained classifier is available and rule-based otherwise; a model-backed
// scorer that hits an inference error falls back to the rule-based path for
// that single call. Evaluate never fails.
type AnomalyScorer struct {
	clf Classifier // nil means rule-based only
}

// NewAnomalyScorer creates an AnomalyScorer. Pass nil for permanent
// rule-based scoring.
func NewAnomalyScorer(clf Classifier) *AnomalyScorer {
	return &AnomalyScorer{clf: clf}
}

// ModelBacked reports whether a trained classifier was loaded.
func (a *AnomalyScorer) ModelBacked() bool {
	return a.clf != nil
}

// Evaluate scores rec for anomaly likelihood.
func (a *AnomalyScorer) Evaluate(rec model.MetricRecord) model.AnomalyResult {
	if a.clf != nil {
		s, err := a.clf.PredictProbability(FeatureVector(rec))
		if err == nil {
			s = clamp01(s)
			return model.AnomalyResult{
				IsAnomaly: s > modelAnomalyCutoff,
				Severity:  modelSeverity(s),
				Score:     s,
			}
		}
		// Local recovery: a failed inference degrades this one call to the
		// rule-based path rather than surfacing an error.
		zap.L().Warn("engine: anomaly inference failed, using rule-based fallback",
			zap.Error(err),
		)
	}
	return a.ruleBased(rec)
}

// ruleBased accumulates field-present-only contributions. Missing fields
// simply contribute nothing.
func (a *AnomalyScorer) ruleBased(rec model.MetricRecord) model.AnomalyResult {
	var score float64
	if v, ok := rec.Get(model.MetricSecurityVulns); ok {
		score += math.Min(v/10, 1) * fallbackWeightVulns
	}
	if v, ok := rec.Get(model.MetricRiskScore); ok {
		score += math.Min(v/100, 1) * fallbackWeightRisk
	}
	if v, ok := rec.Get(model.MetricTestPassRate); ok {
		score += (1 - v) * fallbackWeightPassRate
	}
	score = clamp01(score)

	return model.AnomalyResult{
		IsAnomaly: score > ruleAnomalyCutoff,
		Severity:  ruleSeverity(score),
		Score:     score,
		RuleBased: true,
	}
}

func modelSeverity(s float64) model.Severity {
	switch {
	case s > modelHighCutoff:
		return model.SeverityHigh
	case s > modelMediumCutoff:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func ruleSeverity(s float64) model.Severity {
	switch {
	case s > ruleHighCutoff:
		return model.SeverityHigh
	case s > ruleMediumCutoff:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
