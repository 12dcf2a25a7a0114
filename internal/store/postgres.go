package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/riskgate/riskgate/internal/config"
	"github.com/riskgate/riskgate/internal/db"
	"github.com/riskgate/riskgate/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deployments (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	build_number INTEGER NOT NULL,
	metrics      JSONB NOT NULL,
	decision     JSONB,
	collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evaluations (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	metrics      JSONB NOT NULL,
	decision     JSONB NOT NULL,
	final_tier   TEXT NOT NULL,
	model_backed BOOLEAN NOT NULL DEFAULT false,
	evaluated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deployments_build ON deployments(build_number);
CREATE INDEX IF NOT EXISTS idx_deployments_collected_at ON deployments(collected_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_final_tier ON evaluations(final_tier);
CREATE INDEX IF NOT EXISTS idx_evaluations_evaluated_at ON evaluations(evaluated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordDeployment(ctx context.Context, buildNumber int, metrics model.MetricRecord) (*model.Deployment, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deployments (id, build_number, metrics, collected_at) VALUES ($1, $2, $3, $4)`,
		id, buildNumber, metricsJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert deployment")
	}

	return &model.Deployment{
		ID:          id,
		BuildNumber: buildNumber,
		Metrics:     metrics,
		CollectedAt: now,
	}, nil
}

func (s *PostgresStore) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, build_number, metrics, decision, collected_at FROM deployments WHERE id = $1`,
		id,
	)

	d, err := scanPgDeployment(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: deployment %s", id)
		}
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) ListDeployments(ctx context.Context, filter DeploymentFilter) ([]model.Deployment, error) {
	query := `SELECT id, build_number, metrics, decision, collected_at FROM deployments WHERE true`
	var args []any
	argNum := 1

	if !filter.CollectedAfter.IsZero() {
		query += placeholder(` AND collected_at > $%d`, &argNum)
		args = append(args, filter.CollectedAfter.UTC())
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += placeholder(` LIMIT $%d`, &argNum)
	args = append(args, limit)

	if filter.Offset > 0 {
		query += placeholder(` OFFSET $%d`, &argNum)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deployments")
	}
	defer rows.Close()

	var deps []model.Deployment
	for rows.Next() {
		d, err := scanPgDeployment(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, *d)
	}
	return deps, eris.Wrap(rows.Err(), "postgres: list deployments iterate")
}

func (s *PostgresStore) AttachDecision(ctx context.Context, deploymentID string, decision *model.Decision) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE deployments SET decision = $1 WHERE id = $2`,
		decisionJSON, deploymentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: attach decision %s", deploymentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: deployment %s", deploymentID)
	}
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, metrics model.MetricRecord, decision model.Decision, modelBacked bool) (*model.EvaluationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metrics")
	}
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal decision")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, metrics, decision, final_tier, model_backed, evaluated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, metricsJSON, decisionJSON, string(decision.FinalRecommendation), modelBacked, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert evaluation")
	}

	return &model.EvaluationRecord{
		ID:          id,
		Metrics:     metrics,
		Decision:    decision,
		ModelBacked: modelBacked,
		EvaluatedAt: now,
	}, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.EvaluationRecord, error) {
	query := `SELECT id, metrics, decision, model_backed, evaluated_at FROM evaluations WHERE true`
	var args []any
	argNum := 1

	if !filter.EvaluatedAfter.IsZero() {
		query += placeholder(` AND evaluated_at > $%d`, &argNum)
		args = append(args, filter.EvaluatedAfter.UTC())
	}
	if filter.Recommendation != "" {
		query += placeholder(` AND final_tier = $%d`, &argNum)
		args = append(args, string(filter.Recommendation))
	}
	query += ` ORDER BY evaluated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += placeholder(` LIMIT $%d`, &argNum)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var recs []model.EvaluationRecord
	for rows.Next() {
		var rec model.EvaluationRecord
		var metricsJSON, decisionJSON []byte
		if err := rows.Scan(&rec.ID, &metricsJSON, &decisionJSON, &rec.ModelBacked, &rec.EvaluatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		if err := json.Unmarshal(metricsJSON, &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		if err := json.Unmarshal(decisionJSON, &rec.Decision); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}

// helpers

// placeholder interpolates the next positional argument number into format
// and advances the counter.
func placeholder(format string, argNum *int) string {
	s := fmt.Sprintf(format, *argNum)
	*argNum++
	return s
}

func scanPgDeployment(row pgx.Row) (*model.Deployment, error) {
	var d model.Deployment
	var metricsJSON []byte
	var decisionJSON []byte

	if err := row.Scan(&d.ID, &d.BuildNumber, &metricsJSON, &decisionJSON, &d.CollectedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: scan deployment")
	}

	if err := json.Unmarshal(metricsJSON, &d.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	if len(decisionJSON) > 0 {
		d.Decision = &model.Decision{}
		if err := json.Unmarshal(decisionJSON, d.Decision); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
	}
	return &d, nil
}
