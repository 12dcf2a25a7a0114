package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/riskgate/riskgate/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deployments (
	id           TEXT PRIMARY KEY,
	build_number INTEGER NOT NULL,
	metrics      TEXT NOT NULL,
	decision     TEXT,
	collected_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evaluations (
	id           TEXT PRIMARY KEY,
	metrics      TEXT NOT NULL,
	decision     TEXT NOT NULL,
	final_tier   TEXT NOT NULL,
	model_backed INTEGER NOT NULL DEFAULT 0,
	evaluated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_deployments_build ON deployments(build_number);
CREATE INDEX IF NOT EXISTS idx_deployments_collected_at ON deployments(collected_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_final_tier ON evaluations(final_tier);
CREATE INDEX IF NOT EXISTS idx_evaluations_evaluated_at ON evaluations(evaluated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordDeployment(ctx context.Context, buildNumber int, metrics model.MetricRecord) (*model.Deployment, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, build_number, metrics, collected_at) VALUES (?, ?, ?, ?)`,
		id, buildNumber, string(metricsJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert deployment")
	}

	return &model.Deployment{
		ID:          id,
		BuildNumber: buildNumber,
		Metrics:     metrics,
		CollectedAt: now,
	}, nil
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, build_number, metrics, decision, collected_at FROM deployments WHERE id = ?`,
		id,
	)
	return scanDeployment(row)
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, filter DeploymentFilter) ([]model.Deployment, error) {
	query := `SELECT id, build_number, metrics, decision, collected_at FROM deployments WHERE 1=1`
	var args []any

	if !filter.CollectedAfter.IsZero() {
		query += ` AND collected_at > ?`
		args = append(args, filter.CollectedAfter.UTC())
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deployments")
	}
	defer rows.Close()

	var deps []model.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, *d)
	}
	return deps, eris.Wrap(rows.Err(), "sqlite: list deployments iterate")
}

func (s *SQLiteStore) AttachDecision(ctx context.Context, deploymentID string, decision *model.Decision) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET decision = ? WHERE id = ?`,
		string(decisionJSON), deploymentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: attach decision %s", deploymentID)
	}
	return checkRowsAffected(res, "deployment", deploymentID)
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, metrics model.MetricRecord, decision model.Decision, modelBacked bool) (*model.EvaluationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metrics")
	}
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal decision")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, metrics, decision, final_tier, model_backed, evaluated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(metricsJSON), string(decisionJSON), string(decision.FinalRecommendation), modelBacked, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert evaluation")
	}

	return &model.EvaluationRecord{
		ID:          id,
		Metrics:     metrics,
		Decision:    decision,
		ModelBacked: modelBacked,
		EvaluatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.EvaluationRecord, error) {
	query := `SELECT id, metrics, decision, model_backed, evaluated_at FROM evaluations WHERE 1=1`
	var args []any

	if !filter.EvaluatedAfter.IsZero() {
		query += ` AND evaluated_at > ?`
		args = append(args, filter.EvaluatedAfter.UTC())
	}
	if filter.Recommendation != "" {
		query += ` AND final_tier = ?`
		args = append(args, string(filter.Recommendation))
	}
	query += ` ORDER BY evaluated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close()

	var recs []model.EvaluationRecord
	for rows.Next() {
		var rec model.EvaluationRecord
		var metricsJSON, decisionJSON string
		if err := rows.Scan(&rec.ID, &metricsJSON, &decisionJSON, &rec.ModelBacked, &rec.EvaluatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
		if err := json.Unmarshal([]byte(decisionJSON), &rec.Decision); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeployment(row scannable) (*model.Deployment, error) {
	var d model.Deployment
	var metricsJSON string
	var decisionJSON sql.NullString

	err := row.Scan(&d.ID, &d.BuildNumber, &metricsJSON, &decisionJSON, &d.CollectedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "deployment")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan deployment")
	}

	if err := json.Unmarshal([]byte(metricsJSON), &d.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	if decisionJSON.Valid {
		d.Decision = &model.Decision{}
		if err := json.Unmarshal([]byte(decisionJSON.String), d.Decision); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
	}
	return &d, nil
}
