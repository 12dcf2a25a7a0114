// Package collector records deployment observations and aggregates recent
// engine decisions for monitoring.
package collector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/model"
	"github.com/riskgate/riskgate/internal/store"
)

// Snapshot holds a point-in-time view of recent decisions and collections.
type Snapshot struct {
	// Evaluation metrics (within lookback window).
	EvaluationsTotal int     `json:"evaluations_total"`
	AutoDeploy       int     `json:"auto_deploy"`
	ManualApproval   int     `json:"manual_approval"`
	Blocked          int     `json:"blocked"`
	Anomalies        int     `json:"anomalies"`
	BlockRate        float64 `json:"block_rate"`
	AnomalyRate      float64 `json:"anomaly_rate"`
	AvgConfidence    float64 `json:"avg_confidence"`

	// Collection metrics (within lookback window).
	DeploymentsCollected int `json:"deployments_collected"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector persists deployment observations and summarizes decision history.
type Collector struct {
	store store.Store
}

// New creates a Collector backed by st.
func New(st store.Store) *Collector {
	return &Collector{store: st}
}

// Record persists one deployment observation.
func (c *Collector) Record(ctx context.Context, buildNumber int, metrics model.MetricRecord) (*model.Deployment, error) {
	dep, err := c.store.RecordDeployment(ctx, buildNumber, metrics)
	if err != nil {
		return nil, eris.Wrap(err, "collector: record deployment")
	}

	zap.L().Info("collector: deployment recorded",
		zap.String("id", dep.ID),
		zap.Int("build_number", buildNumber),
		zap.Int("metrics", len(metrics)),
	)
	return dep, nil
}

// Snapshot aggregates decisions and collections over the lookback window.
func (c *Collector) Snapshot(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	evals, err := c.store.ListEvaluations(ctx, store.EvaluationFilter{
		EvaluatedAfter: cutoff,
		Limit:          10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "collector: list evaluations")
	}

	snap.EvaluationsTotal = len(evals)
	var totalConfidence float64
	for _, e := range evals {
		switch e.Decision.FinalRecommendation {
		case model.TierAutoDeploy:
			snap.AutoDeploy++
		case model.TierManualApproval:
			snap.ManualApproval++
		case model.TierBlock:
			snap.Blocked++
		}
		if e.Decision.Anomaly.IsAnomaly {
			snap.Anomalies++
		}
		totalConfidence += e.Decision.Confidence
	}
	if snap.EvaluationsTotal > 0 {
		snap.BlockRate = float64(snap.Blocked) / float64(snap.EvaluationsTotal)
		snap.AnomalyRate = float64(snap.Anomalies) / float64(snap.EvaluationsTotal)
		snap.AvgConfidence = totalConfidence / float64(snap.EvaluationsTotal)
	}

	deps, err := c.store.ListDeployments(ctx, store.DeploymentFilter{
		CollectedAfter: cutoff,
		Limit:          10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "collector: list deployments")
	}
	snap.DeploymentsCollected = len(deps)

	return snap, nil
}
