// Package monitoring watches recent engine decisions and raises webhook
// alerts when block or anomaly rates climb past configured thresholds.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/collector"
	"github.com/riskgate/riskgate/internal/config"
	"github.com/riskgate/riskgate/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBlockRate   AlertType = "block_rate"
	AlertAnomalyRate AlertType = "anomaly_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a decision snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Rates over fewer than 5 evaluations are too noisy to act on.
func (a *Alerter) Evaluate(snap *collector.Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.EvaluationsTotal < 5 {
		return nil
	}

	if snap.BlockRate > a.cfg.BlockRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBlockRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Block rate %.1f%% exceeds threshold %.1f%% (%d blocked / %d evaluations in last %dh)",
				snap.BlockRate*100, a.cfg.BlockRateThreshold*100,
				snap.Blocked, snap.EvaluationsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"block_rate":  snap.BlockRate,
				"threshold":   a.cfg.BlockRateThreshold,
				"blocked":     snap.Blocked,
				"evaluations": snap.EvaluationsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.AnomalyRate > a.cfg.AnomalyRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertAnomalyRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Anomaly rate %.1f%% exceeds threshold %.1f%% (%d anomalous / %d evaluations in last %dh)",
				snap.AnomalyRate*100, a.cfg.AnomalyRateThreshold*100,
				snap.Anomalies, snap.EvaluationsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"anomaly_rate": snap.AnomalyRate,
				"threshold":    a.cfg.AnomalyRateThreshold,
				"anomalies":    snap.Anomalies,
				"evaluations":  snap.EvaluationsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL, retrying transient
// delivery failures.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	return resilience.Do(ctx, a.retry, "alert webhook", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "monitoring: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 400 {
			err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}
		return nil
	})
}
