// Package telemetry exposes Prometheus metrics for prediction traffic.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// predictionsTotal counts predictions by endpoint and outcome.
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_total",
		Help: "Total predictions served by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// predictionLatency tracks prediction handler latency.
	predictionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prediction_latency_seconds",
		Help:    "Prediction latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"endpoint"})

	// fallbackTotal counts anomaly evaluations that used the rule-based path.
	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomaly_fallback_total",
		Help: "Anomaly evaluations served by the rule-based fallback",
	})
)

// ObservePrediction records one prediction with its outcome and latency.
func ObservePrediction(endpoint, outcome string, seconds float64) {
	predictionsTotal.WithLabelValues(endpoint, outcome).Inc()
	predictionLatency.WithLabelValues(endpoint).Observe(seconds)
}

// ObserveFallback records one rule-based anomaly evaluation.
func ObserveFallback() {
	fallbackTotal.Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
