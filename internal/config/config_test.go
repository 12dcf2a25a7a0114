package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "riskgate.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "models/quality_predictor.json", cfg.Models.QualityPath)
	assert.Equal(t, "models/anomaly_detector.json", cfg.Models.AnomalyPath)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.InDelta(t, 50, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 100, cfg.Server.RateLimitBurst)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 100, cfg.Generate.Samples)
	assert.Equal(t, int64(42), cfg.Generate.Seed)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.3, cfg.Monitoring.BlockRateThreshold, 0.001)
	assert.InDelta(t, 0.25, cfg.Monitoring.AnomalyRateThreshold, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/riskgate
models:
  quality_path: /opt/models/quality.json
server:
  port: 9000
  rate_limit_rps: 10
log:
  level: debug
  format: console
monitoring:
  block_rate_threshold: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/riskgate", cfg.Store.DatabaseURL)
	assert.Equal(t, "/opt/models/quality.json", cfg.Models.QualityPath)
	// Unset keys fall back to defaults.
	assert.Equal(t, "models/anomaly_detector.json", cfg.Models.AnomalyPath)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.InDelta(t, 10, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 0.5, cfg.Monitoring.BlockRateThreshold, 0.001)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false},
		{"bad level", LogConfig{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}
