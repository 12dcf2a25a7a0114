// Package store persists deployment observations and engine decisions.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/riskgate/riskgate/internal/model"
)

// ErrNotFound signals that the requested record does not exist. Callers map
// it to a 404 instead of a server error.
var ErrNotFound = eris.New("store: record not found")

// DeploymentFilter specifies criteria for listing deployments.
type DeploymentFilter struct {
	CollectedAfter time.Time `json:"collected_after,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
}

// EvaluationFilter specifies criteria for listing evaluation records.
type EvaluationFilter struct {
	EvaluatedAfter time.Time  `json:"evaluated_after,omitempty"`
	Recommendation model.Tier `json:"recommendation,omitempty"`
	Limit          int        `json:"limit,omitempty"`
}

// Store defines the persistence interface for the risk engine.
type Store interface {
	// Deployments
	RecordDeployment(ctx context.Context, buildNumber int, metrics model.MetricRecord) (*model.Deployment, error)
	GetDeployment(ctx context.Context, id string) (*model.Deployment, error)
	ListDeployments(ctx context.Context, filter DeploymentFilter) ([]model.Deployment, error)
	AttachDecision(ctx context.Context, deploymentID string, decision *model.Decision) error

	// Evaluations
	SaveEvaluation(ctx context.Context, metrics model.MetricRecord, decision model.Decision, modelBacked bool) (*model.EvaluationRecord, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.EvaluationRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
