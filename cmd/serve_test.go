package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskgate/riskgate/internal/classifier"
	"github.com/riskgate/riskgate/internal/collector"
	"github.com/riskgate/riskgate/internal/config"
	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/model"
	"github.com/riskgate/riskgate/internal/store"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Server: config.ServerConfig{
			Port:           5000,
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
			AllowedOrigins: []string{"*"},
		},
		Monitoring: config.MonitoringConfig{LookbackWindowHours: 24},
	}
	t.Cleanup(func() { cfg = prev })
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// trainedEngine builds an engine whose quality model always scores high and
// whose anomaly model always scores low.
func trainedEngine(t *testing.T) *engine.Engine {
	t.Helper()
	n := len(engine.Schema().Names)
	return engine.New(
		classifier.NewLinear(make([]float64, n), 3.0),  // sigmoid(3) ~ 0.95
		classifier.NewLinear(make([]float64, n), -3.0), // sigmoid(-3) ~ 0.047
	)
}

func newTestRouter(t *testing.T, eng *engine.Engine, st store.Store) http.Handler {
	t.Helper()
	setTestConfig(t)
	return newRouter(eng, st, collector.New(st))
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleMetrics() model.MetricRecord {
	return model.MetricRecord{
		model.MetricTestPassRate:    0.95,
		model.MetricCodeCoverage:    0.85,
		model.MetricSecurityVulns:   1,
		model.MetricCodeComplexity:  5,
		model.MetricLinesOfCode:     1500,
		model.MetricDeployFrequency: 12,
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["quality_trained"])
	assert.Equal(t, true, resp["anomaly_model_backed"])
}

func TestPredictQuality(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	rec := postJSON(t, router, "/predict/quality", sampleMetrics())
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.QualityResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.SuccessPrediction)
	assert.Equal(t, model.TierAutoDeploy, result.Recommendation)
	assert.InDelta(t, 0.9526, result.SuccessProbability, 0.001)
}

func TestPredictQualityUntrained(t *testing.T) {
	n := len(engine.Schema().Names)
	eng := engine.New(nil, classifier.NewLinear(make([]float64, n), -3.0))
	router := newTestRouter(t, eng, newTestStore(t))

	rec := postJSON(t, router, "/predict/quality", sampleMetrics())
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not trained")
}

func TestPredictQualityBadBody(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/predict/quality", bytes.NewReader([]byte("{bad")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec2 := postJSON(t, router, "/predict/quality", model.MetricRecord{})
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestPredictAnomalyFallback(t *testing.T) {
	// No anomaly model: rule-based fallback still serves every request.
	router := newTestRouter(t, engine.New(nil, nil), newTestStore(t))

	metrics := model.MetricRecord{
		model.MetricTestPassRate:  0.95,
		model.MetricSecurityVulns: 10,
	}
	rec := postJSON(t, router, "/predict/anomaly", metrics)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnomalyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.IsAnomaly)
	assert.Equal(t, model.SeverityMedium, result.Severity)
	assert.InDelta(t, 0.605, result.Score, 1e-9)
}

func TestPredictComprehensivePersists(t *testing.T) {
	st := newTestStore(t)
	router := newTestRouter(t, trainedEngine(t), st)

	rec := postJSON(t, router, "/predict/comprehensive", sampleMetrics())
	require.Equal(t, http.StatusOK, rec.Code)

	var decision model.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, model.TierAutoDeploy, decision.FinalRecommendation)

	evals, err := st.ListEvaluations(context.Background(), store.EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, model.TierAutoDeploy, evals[0].Decision.FinalRecommendation)
	assert.True(t, evals[0].ModelBacked)
}

func TestPredictAnomalyPerCallFallback(t *testing.T) {
	// An anomaly classifier whose coefficient count does not match the
	// feature vector errors on every inference; each call then degrades to
	// the rule-based path.
	n := len(engine.Schema().Names)
	eng := engine.New(
		classifier.NewLinear(make([]float64, n), 3.0),
		classifier.NewLinear([]float64{1}, 0),
	)
	router := newTestRouter(t, eng, newTestStore(t))

	metrics := model.MetricRecord{
		model.MetricTestPassRate:  0.95,
		model.MetricSecurityVulns: 10,
	}
	rec := postJSON(t, router, "/predict/anomaly", metrics)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AnomalyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 0.605, result.Score, 1e-9)
	assert.Equal(t, model.SeverityMedium, result.Severity)
}

func TestPredictComprehensivePerCallFallbackNotModelBacked(t *testing.T) {
	n := len(engine.Schema().Names)
	eng := engine.New(
		classifier.NewLinear(make([]float64, n), 3.0),
		classifier.NewLinear([]float64{1}, 0),
	)
	st := newTestStore(t)
	router := newTestRouter(t, eng, st)

	rec := postJSON(t, router, "/predict/comprehensive", sampleMetrics())
	require.Equal(t, http.StatusOK, rec.Code)

	evals, err := st.ListEvaluations(context.Background(), store.EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.False(t, evals[0].ModelBacked, "a rule-based fallback decision is not model-backed")
}

func TestPredictComprehensiveUntrained(t *testing.T) {
	router := newTestRouter(t, engine.New(nil, nil), newTestStore(t))

	rec := postJSON(t, router, "/predict/comprehensive", sampleMetrics())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecordAndListDeployments(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	rec := postJSON(t, router, "/deployments", map[string]any{
		"build_number": 42,
		"metrics":      sampleMetrics(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var dep model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dep))
	assert.Equal(t, 42, dep.BuildNumber)
	assert.NotEmpty(t, dep.ID)

	req := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var deps []model.Deployment
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &deps))
	require.Len(t, deps, 1)
	assert.Equal(t, 42, deps[0].BuildNumber)
}

func TestGetDeployment(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	rec := postJSON(t, router, "/deployments", map[string]any{
		"build_number": 7,
		"metrics":      sampleMetrics(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/deployments/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var dep model.Deployment
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &dep))
	assert.Equal(t, created.ID, dep.ID)
	assert.Equal(t, 7, dep.BuildNumber)
	assert.Nil(t, dep.Decision)
}

func TestGetDeploymentNotFound(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	req := httptest.NewRequest(http.MethodGet, "/deployments/missing-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvaluateDeploymentAttachesDecision(t *testing.T) {
	st := newTestStore(t)
	router := newTestRouter(t, trainedEngine(t), st)

	rec := postJSON(t, router, "/deployments", map[string]any{
		"build_number": 9,
		"metrics":      sampleMetrics(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	evalRec := postJSON(t, router, "/deployments/"+created.ID+"/evaluate", nil)
	require.Equal(t, http.StatusOK, evalRec.Code)

	var decision model.Decision
	require.NoError(t, json.Unmarshal(evalRec.Body.Bytes(), &decision))
	assert.Equal(t, model.TierAutoDeploy, decision.FinalRecommendation)

	stored, err := st.GetDeployment(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Decision)
	assert.Equal(t, model.TierAutoDeploy, stored.Decision.FinalRecommendation)
}

func TestEvaluateDeploymentNotFound(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	rec := postJSON(t, router, "/deployments/missing-id/evaluate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvaluateDeploymentUntrained(t *testing.T) {
	st := newTestStore(t)
	router := newTestRouter(t, engine.New(nil, nil), st)

	rec := postJSON(t, router, "/deployments", map[string]any{
		"build_number": 3,
		"metrics":      sampleMetrics(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	evalRec := postJSON(t, router, "/deployments/"+created.ID+"/evaluate", nil)
	assert.Equal(t, http.StatusConflict, evalRec.Code)
}

func TestRecordDeploymentRequiresMetrics(t *testing.T) {
	router := newTestRouter(t, trainedEngine(t), newTestStore(t))

	rec := postJSON(t, router, "/deployments", map[string]any{"build_number": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	st := newTestStore(t)
	router := newTestRouter(t, trainedEngine(t), st)

	postJSON(t, router, "/predict/comprehensive", sampleMetrics())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap collector.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.EvaluationsTotal)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestRateLimit(t *testing.T) {
	setTestConfig(t)
	cfg.Server.RateLimitRPS = 1
	cfg.Server.RateLimitBurst = 2
	st := newTestStore(t)
	router := newRouter(trainedEngine(t), st, collector.New(st))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}
