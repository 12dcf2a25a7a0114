package model

// Tier is a deployment recommendation, totally ordered by risk.
type Tier string

const (
	TierAutoDeploy     Tier = "AUTO_DEPLOY"
	TierManualApproval Tier = "MANUAL_APPROVAL"
	TierBlock          Tier = "BLOCK_DEPLOYMENT"
)

// Rank returns the tier's position in the risk ordering
// AUTO_DEPLOY < MANUAL_APPROVAL < BLOCK_DEPLOYMENT. Unknown tiers rank
// highest so a corrupted value can never relax a decision.
func (t Tier) Rank() int {
	switch t {
	case TierAutoDeploy:
		return 0
	case TierManualApproval:
		return 1
	case TierBlock:
		return 2
	default:
		return 3
	}
}

// Severity describes anomaly confidence strength.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// QualityResult is the outcome of one quality evaluation. Immutable once
// produced.
type QualityResult struct {
	SuccessPrediction  bool    `json:"success_prediction"`
	SuccessProbability float64 `json:"success_probability"`
	Recommendation     Tier    `json:"recommendation"`
}

// AnomalyResult is the outcome of one anomaly evaluation. Immutable once
// produced. RuleBased records which scoring path produced the result,
// including per-call fallbacks after an inference error; it is internal
// bookkeeping and stays out of the response body.
type AnomalyResult struct {
	IsAnomaly bool     `json:"is_anomaly"`
	Severity  Severity `json:"severity"`
	Score     float64  `json:"score"`
	RuleBased bool     `json:"-"`
}

// Decision fuses a quality and an anomaly result into one final
// recommendation. Confidence is the quality probability; the anomaly score
// affects only the action tier.
type Decision struct {
	Quality             QualityResult `json:"quality_prediction"`
	Anomaly             AnomalyResult `json:"anomaly_detection"`
	FinalRecommendation Tier          `json:"final_recommendation"`
	Confidence          float64       `json:"confidence"`
}
