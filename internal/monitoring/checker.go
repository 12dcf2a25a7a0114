package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/collector"
	"github.com/riskgate/riskgate/internal/config"
)

// Checker periodically snapshots recent decisions and raises alerts.
type Checker struct {
	collector *collector.Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	log       *zap.Logger
}

// NewChecker creates a new periodic checker.
func NewChecker(c *collector.Collector, a *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: c,
		alerter:   a,
		cfg:       cfg,
		log:       zap.L().Named("monitoring.checker"),
	}
}

// Run executes the check loop until ctx is cancelled. The first check
// fires after one interval, not immediately.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	c.log.Info("starting decision monitor",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("decision monitor stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs a single monitoring pass.
func (c *Checker) Check(ctx context.Context) {
	snap, err := c.collector.Snapshot(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		c.log.Error("failed to collect decision snapshot", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.log.Debug("decision rates within thresholds",
			zap.Float64("block_rate", snap.BlockRate),
			zap.Float64("anomaly_rate", snap.AnomalyRate),
			zap.Int("evaluations", snap.EvaluationsTotal),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Warn("decision thresholds breached",
		zap.Int("alerts", len(alerts)),
		zap.Int("sent", sent),
	)
}
