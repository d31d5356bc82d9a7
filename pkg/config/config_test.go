package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrentDetections)
	assert.Equal(t, 8, cfg.Trigger.HighRiskWeight)
	assert.Equal(t, 0.80, cfg.Trigger.RescanConfidence)
	assert.Equal(t, "riskscan-labels.db", cfg.LabelIndex.Path)
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orchestrator:
  max_concurrent_detections: 16
trigger:
  high_risk_weight: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Orchestrator.MaxConcurrentDetections)
	assert.Equal(t, 10, cfg.Trigger.HighRiskWeight)
	// Untouched keys keep their embedded default.
	assert.Equal(t, 0.80, cfg.Trigger.RescanConfidence)
}

func TestLoad_EnvironmentOverlay(t *testing.T) {
	t.Setenv("RISKSCAN_TRIGGER_HIGH_RISK_WEIGHT", "9")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Trigger.HighRiskWeight)
}

func TestLoad_MissingFilePathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Orchestrator, cfg.Orchestrator)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxConcurrentDetections = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Trigger.RescanConfidence = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LabelIndex.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
