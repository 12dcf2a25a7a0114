package model

import "time"

// Deployment is one collected deployment observation: the raw metrics for a
// build, plus whatever the engine decided about it (if it was evaluated).
type Deployment struct {
	ID          string       `json:"id"`
	BuildNumber int          `json:"build_number"`
	Metrics     MetricRecord `json:"metrics"`
	Decision    *Decision    `json:"decision,omitempty"`
	CollectedAt time.Time    `json:"collected_at"`
}

// EvaluationRecord is a persisted decision with the inputs that produced it,
// kept for auditing and threshold calibration.
type EvaluationRecord struct {
	ID          string       `json:"id"`
	Metrics     MetricRecord `json:"metrics"`
	Decision    Decision     `json:"decision"`
	ModelBacked bool         `json:"model_backed"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}
