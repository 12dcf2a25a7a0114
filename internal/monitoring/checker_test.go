package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskgate/riskgate/internal/collector"
	"github.com/riskgate/riskgate/internal/config"
	"github.com/riskgate/riskgate/internal/model"
	"github.com/riskgate/riskgate/internal/store"
)

func blockedDecision() model.Decision {
	return model.Decision{
		Quality: model.QualityResult{
			SuccessPrediction:  false,
			SuccessProbability: 0.2,
			Recommendation:     model.TierBlock,
		},
		Anomaly: model.AnomalyResult{
			IsAnomaly: true,
			Severity:  model.SeverityHigh,
			Score:     0.9,
		},
		FinalRecommendation: model.TierBlock,
		Confidence:          0.2,
	}
}

func passingDecision() model.Decision {
	return model.Decision{
		Quality: model.QualityResult{
			SuccessPrediction:  true,
			SuccessProbability: 0.95,
			Recommendation:     model.TierAutoDeploy,
		},
		Anomaly: model.AnomalyResult{
			IsAnomaly: false,
			Severity:  model.SeverityLow,
			Score:     0.1,
		},
		FinalRecommendation: model.TierAutoDeploy,
		Confidence:          0.95,
	}
}

func TestCheckerCheckFiresAlerts(t *testing.T) {
	ctx := context.Background()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	metrics := model.MetricRecord{model.MetricTestPassRate: 0.5}
	for i := 0; i < 4; i++ {
		_, err := s.SaveEvaluation(ctx, metrics, blockedDecision(), true)
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		_, err := s.SaveEvaluation(ctx, metrics, passingDecision(), true)
		require.NoError(t, err)
	}

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    300,
		LookbackWindowHours:  24,
		BlockRateThreshold:   0.3,
		AnomalyRateThreshold: 0.25,
		WebhookURL:           srv.URL,
	}

	checker := NewChecker(collector.New(s), NewAlerter(cfg), cfg)
	checker.Check(ctx)

	// 4 blocked and 4 anomalous out of 8 breach both thresholds.
	assert.Equal(t, int64(2), received.Load())
}

func TestCheckerCheckQuietWhenHealthy(t *testing.T) {
	ctx := context.Background()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	metrics := model.MetricRecord{model.MetricTestPassRate: 0.98}
	for i := 0; i < 6; i++ {
		_, err := s.SaveEvaluation(ctx, metrics, passingDecision(), true)
		require.NoError(t, err)
	}

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    300,
		LookbackWindowHours:  24,
		BlockRateThreshold:   0.3,
		AnomalyRateThreshold: 0.25,
		WebhookURL:           srv.URL,
	}

	checker := NewChecker(collector.New(s), NewAlerter(cfg), cfg)
	checker.Check(ctx)

	assert.Equal(t, int64(0), received.Load())
}
