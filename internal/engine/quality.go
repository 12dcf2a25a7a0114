package engine

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/model"
)

// Classifier is the inference capability of a trained model: given a feature
// vector in schema order, return the positive-class probability. Loaded
// models are read-only and safe for concurrent use.
type Classifier interface {
	PredictProbability(features []float64) (float64, error)
}

// Quality recommendation tier boundaries. Boundary values belong to the
// higher tier: p=0.85 is AUTO_DEPLOY, p=0.70 is MANUAL_APPROVAL.
const (
	tierAutoDeployMin = 0.85
	tierManualMin     = 0.70
)

// QualityScorer predicts deployment success from build metrics. The trained
// variant is selected once at construction; an untrained scorer fails every
// evaluation with ErrModelNotTrained.
type QualityScorer struct {
	clf Classifier // nil means untrained
}

// NewQualityScorer creates a QualityScorer backed by clf. Pass nil for the
// untrained state.
func NewQualityScorer(clf Classifier) *QualityScorer {
	return &QualityScorer{clf: clf}
}

// Trained reports whether a classifier was loaded.
func (q *QualityScorer) Trained() bool {
	return q.clf != nil
}

// Evaluate derives the feature vector from rec and produces a QualityResult.
// Fails with ErrModelNotTrained when no classifier was loaded.
func (q *QualityScorer) Evaluate(rec model.MetricRecord) (model.QualityResult, error) {
	if q.clf == nil {
		return model.QualityResult{}, ErrModelNotTrained
	}

	p, err := q.clf.PredictProbability(FeatureVector(rec))
	if err != nil {
		return model.QualityResult{}, eris.Wrap(err, "engine: quality inference")
	}
	p = clamp01(p)

	res := model.QualityResult{
		SuccessPrediction:  p >= 0.5,
		SuccessProbability: p,
		Recommendation:     recommendTier(p),
	}

	zap.L().Debug("engine: quality evaluated",
		zap.Float64("success_probability", p),
		zap.String("recommendation", string(res.Recommendation)),
	)
	return res, nil
}

// recommendTier partitions [0,1] into the three recommendation tiers.
func recommendTier(p float64) model.Tier {
	switch {
	case p >= tierAutoDeployMin:
		return model.TierAutoDeploy
	case p >= tierManualMin:
		return model.TierManualApproval
	default:
		return model.TierBlock
	}
}
