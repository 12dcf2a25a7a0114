package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/classifier"
	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/store"
)

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "riskgate.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine loads the trained classifiers and builds the decision engine.
// A missing artifact is a valid degraded state: the quality path refuses to
// evaluate and the anomaly path falls back to rule-based scoring. A corrupt
// or schema-incompatible artifact aborts startup instead.
func initEngine() (*engine.Engine, error) {
	qualityClf, err := loadArtifact(cfg.Models.QualityPath, "quality")
	if err != nil {
		return nil, err
	}
	anomalyClf, err := loadArtifact(cfg.Models.AnomalyPath, "anomaly")
	if err != nil {
		return nil, err
	}
	return engine.New(qualityClf, anomalyClf), nil
}

// loadArtifact returns the untyped nil interface for a missing artifact: a
// typed *Linear nil would pass the scorers' nil checks and panic on use.
func loadArtifact(path, kind string) (engine.Classifier, error) {
	clf, err := classifier.Load(path)
	if err != nil {
		if eris.Is(err, classifier.ErrArtifactNotFound) {
			zap.L().Warn("model artifact not found, scorer degraded",
				zap.String("kind", kind),
				zap.String("path", path),
			)
			return nil, nil
		}
		return nil, eris.Wrapf(err, "load %s model", kind)
	}
	return clf, nil
}
