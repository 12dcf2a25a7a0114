package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riskgate/riskgate/internal/collector"
	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/model"
	"github.com/riskgate/riskgate/internal/monitoring"
	"github.com/riskgate/riskgate/internal/store"
	"github.com/riskgate/riskgate/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}

		col := collector.New(st)

		// Background decision monitor
		checker := monitoring.NewChecker(col, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		router := newRouter(eng, st, col)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting prediction server",
			zap.Int("port", port),
			zap.Bool("quality_trained", eng.QualityTrained()),
			zap.Bool("anomaly_model_backed", eng.AnomalyModelBacked()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(eng *engine.Engine, st store.Store, col *collector.Collector) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst))

	r.Get("/health", handleHealth(eng))
	r.Handle("/metrics", telemetry.Handler())

	r.Post("/predict/quality", handlePredictQuality(eng))
	r.Post("/predict/anomaly", handlePredictAnomaly(eng))
	r.Post("/predict/comprehensive", handlePredictComprehensive(eng, st))

	r.Post("/deployments", handleRecordDeployment(col))
	r.Get("/deployments", handleListDeployments(st))
	r.Get("/deployments/{id}", handleGetDeployment(st))
	r.Post("/deployments/{id}/evaluate", handleEvaluateDeployment(eng, st))
	r.Get("/status", handleStatus(col))

	return r
}

// rateLimit applies a server-wide token bucket. Requests over the limit are
// rejected immediately rather than queued.
func rateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":               "ok",
			"quality_trained":      eng.QualityTrained(),
			"anomaly_model_backed": eng.AnomalyModelBacked(),
		})
	}
}

func handlePredictQuality(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec, ok := decodeMetrics(w, r)
		if !ok {
			return
		}

		result, err := eng.EvaluateQuality(rec)
		if err != nil {
			if eris.Is(err, engine.ErrModelNotTrained) {
				telemetry.ObservePrediction("quality", "untrained", time.Since(start).Seconds())
				writeError(w, http.StatusConflict, "quality model is not trained")
				return
			}
			telemetry.ObservePrediction("quality", "error", time.Since(start).Seconds())
			zap.L().Error("quality prediction failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "prediction failed")
			return
		}

		telemetry.ObservePrediction("quality", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, result)
	}
}

func handlePredictAnomaly(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec, ok := decodeMetrics(w, r)
		if !ok {
			return
		}

		result := eng.EvaluateAnomaly(rec)
		if result.RuleBased {
			telemetry.ObserveFallback()
		}

		telemetry.ObservePrediction("anomaly", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, result)
	}
}

func handlePredictComprehensive(eng *engine.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec, ok := decodeMetrics(w, r)
		if !ok {
			return
		}

		decision, err := eng.Evaluate(rec)
		if err != nil {
			if eris.Is(err, engine.ErrModelNotTrained) {
				telemetry.ObservePrediction("comprehensive", "untrained", time.Since(start).Seconds())
				writeError(w, http.StatusConflict, "quality model is not trained")
				return
			}
			telemetry.ObservePrediction("comprehensive", "error", time.Since(start).Seconds())
			zap.L().Error("comprehensive prediction failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "prediction failed")
			return
		}

		if decision.Anomaly.RuleBased {
			telemetry.ObserveFallback()
		}

		if _, err := st.SaveEvaluation(r.Context(), rec, decision, !decision.Anomaly.RuleBased); err != nil {
			// The caller still gets their decision; history is best-effort.
			zap.L().Warn("failed to persist evaluation", zap.Error(err))
		}

		telemetry.ObservePrediction("comprehensive", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, decision)
	}
}

func handleRecordDeployment(col *collector.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BuildNumber int                `json:"build_number"`
			Metrics     model.MetricRecord `json:"metrics"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Metrics) == 0 {
			writeError(w, http.StatusBadRequest, "metrics are required")
			return
		}

		dep, err := col.Record(r.Context(), req.BuildNumber, req.Metrics)
		if err != nil {
			zap.L().Error("failed to record deployment", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to record deployment")
			return
		}

		writeJSON(w, http.StatusCreated, dep)
	}
}

func handleListDeployments(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.DeploymentFilter{Limit: 100}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}

		deps, err := st.ListDeployments(r.Context(), filter)
		if err != nil {
			zap.L().Error("failed to list deployments", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list deployments")
			return
		}
		if deps == nil {
			deps = []model.Deployment{}
		}

		writeJSON(w, http.StatusOK, deps)
	}
}

func handleGetDeployment(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		dep, err := st.GetDeployment(r.Context(), id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "deployment not found")
				return
			}
			zap.L().Error("failed to get deployment", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to get deployment")
			return
		}

		writeJSON(w, http.StatusOK, dep)
	}
}

// handleEvaluateDeployment scores a previously collected deployment and
// attaches the decision to it.
func handleEvaluateDeployment(eng *engine.Engine, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")

		dep, err := st.GetDeployment(r.Context(), id)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "deployment not found")
				return
			}
			zap.L().Error("failed to get deployment", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to get deployment")
			return
		}

		decision, err := eng.Evaluate(dep.Metrics)
		if err != nil {
			if eris.Is(err, engine.ErrModelNotTrained) {
				telemetry.ObservePrediction("deployment", "untrained", time.Since(start).Seconds())
				writeError(w, http.StatusConflict, "quality model is not trained")
				return
			}
			telemetry.ObservePrediction("deployment", "error", time.Since(start).Seconds())
			zap.L().Error("deployment evaluation failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "evaluation failed")
			return
		}
		if decision.Anomaly.RuleBased {
			telemetry.ObserveFallback()
		}

		if err := st.AttachDecision(r.Context(), id, &decision); err != nil {
			zap.L().Error("failed to attach decision", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to attach decision")
			return
		}

		telemetry.ObservePrediction("deployment", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, decision)
	}
}

func handleStatus(col *collector.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lookback := cfg.Monitoring.LookbackWindowHours
		if v := r.URL.Query().Get("lookback_hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid lookback_hours")
				return
			}
			lookback = n
		}

		snap, err := col.Snapshot(r.Context(), lookback)
		if err != nil {
			zap.L().Error("failed to build status snapshot", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to build snapshot")
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// decodeMetrics reads a flat JSON object of metric name to value. Returns
// false after writing an error response.
func decodeMetrics(w http.ResponseWriter, r *http.Request) (model.MetricRecord, bool) {
	var rec model.MetricRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(rec) == 0 {
		writeError(w, http.StatusBadRequest, "metrics are required")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
