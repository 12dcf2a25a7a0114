// Package engine implements the deployment risk decision engine: feature
// derivation, quality and anomaly scoring, and decision fusion.
package engine

import (
	"math"

	"github.com/riskgate/riskgate/internal/model"
)

// Feature derivation weights. These are fixed design constants shared with
// the training side; changing them breaks comparability with historical
// scores.
const (
	qualityWeightPassRate   = 0.3
	qualityWeightCoverage   = 0.25
	qualityWeightVulns      = 0.25
	qualityWeightComplexity = 0.2

	riskWeightVulns      = 0.4
	riskWeightPassRate   = 30.0
	riskWeightCoverage   = 20.0
	riskWeightComplexity = 0.1
)

// FeatureSchema is the ordered feature contract between a trained artifact
// and the serving-side scorers. Order matters: reordering silently corrupts
// predictions, so artifacts carry the same list and loading fails on any
// mismatch.
type FeatureSchema struct {
	Version int
	Names   []string
}

// Schema returns the current feature schema.
func Schema() FeatureSchema {
	return FeatureSchema{
		Version: 1,
		Names: []string{
			model.MetricTestPassRate,
			model.MetricCodeCoverage,
			model.MetricSecurityVulns,
			model.MetricCodeComplexity,
			model.MetricLinesOfCode,
			model.MetricDeployFrequency,
			model.MetricQualityScore,
			model.MetricRiskScore,
		},
	}
}

// DeriveFeatures computes quality_score and risk_score from the raw metrics
// and returns a copy of the record with both merged in. The input record is
// never mutated.
//
// code_complexity is intentionally not clamped: values above 10 push
// quality_score negative, matching the historical scoring data.
func DeriveFeatures(rec model.MetricRecord) model.MetricRecord {
	out := rec.Clone()

	passRate := rec[model.MetricTestPassRate]
	coverage := rec[model.MetricCodeCoverage]
	vulns := rec[model.MetricSecurityVulns]
	complexity := rec[model.MetricCodeComplexity]

	out[model.MetricQualityScore] = qualityWeightPassRate*passRate +
		qualityWeightCoverage*coverage +
		qualityWeightVulns*(1-math.Min(vulns/10, 1)) +
		qualityWeightComplexity*(1-complexity/10)

	out[model.MetricRiskScore] = riskWeightVulns*vulns +
		riskWeightPassRate*(1-passRate) +
		riskWeightCoverage*(1-coverage) +
		riskWeightComplexity*complexity

	return out
}

// FeatureVector derives features and flattens the record into the schema
// order consumed by a trained classifier. Missing fields read as zero.
func FeatureVector(rec model.MetricRecord) []float64 {
	derived := DeriveFeatures(rec)
	schema := Schema()
	vec := make([]float64, len(schema.Names))
	for i, name := range schema.Names {
		vec[i] = derived[name]
	}
	return vec
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
