package engine

import "github.com/riskgate/riskgate/internal/model"

// Fuse combines a quality and an anomaly result into a final decision. Pure
// function: the quality recommendation is the baseline, and anomaly signals
// only ever escalate it. Both anomaly rules are evaluated; a HIGH severity
// overrides the MEDIUM escalation.
//
// Confidence is the quality probability unchanged: it reflects the
// predictive model, not the anomaly detector.
func Fuse(quality model.QualityResult, anomaly model.AnomalyResult) model.Decision {
	final := quality.Recommendation

	if anomaly.IsAnomaly && (anomaly.Severity == model.SeverityMedium || anomaly.Severity == model.SeverityHigh) {
		final = model.TierManualApproval
	}
	if anomaly.IsAnomaly && anomaly.Severity == model.SeverityHigh {
		final = model.TierBlock
	}

	// Fusion may only escalate relative to the quality baseline.
	if final.Rank() < quality.Recommendation.Rank() {
		final = quality.Recommendation
	}

	return model.Decision{
		Quality:             quality,
		Anomaly:             anomaly,
		FinalRecommendation: final,
		Confidence:          quality.SuccessProbability,
	}
}
