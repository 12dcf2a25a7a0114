// Package model defines the domain types shared across the risk engine,
// store, and serving layers.
package model

// Metric names recognized by the feature deriver and scorers. A MetricRecord
// may carry additional keys; these are the ones the engine reads.
const (
	MetricTestPassRate    = "test_pass_rate"
	MetricCodeCoverage    = "code_coverage"
	MetricSecurityVulns   = "security_vulnerabilities"
	MetricCodeComplexity  = "code_complexity"
	MetricLinesOfCode     = "lines_of_code"
	MetricDeployFrequency = "deployment_frequency"

	// Derived by the feature deriver, merged back into the record.
	MetricQualityScore = "quality_score"
	MetricRiskScore    = "risk_score"

	// Post-deployment outcome metrics recorded by the collector. Not
	// consumed by the engine, but persisted for training.
	MetricDeploySuccess = "deployment_success"
	MetricErrorRate     = "error_rate"
	MetricResponseTime  = "response_time"
)

// MetricRecord maps metric names to numeric values. All fields are optional
// at evaluation time; scorers treat a missing field's contribution as zero.
type MetricRecord map[string]float64

// Get returns the value for name and whether it is present.
func (m MetricRecord) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Has reports whether name is present in the record.
func (m MetricRecord) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Clone returns a shallow copy. Scorers clone before merging derived
// features so callers never observe mutation of their input.
func (m MetricRecord) Clone() MetricRecord {
	out := make(MetricRecord, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
