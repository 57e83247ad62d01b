package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
failure-budget-percent = 10.0

[throttler]
max-parallel = 8
max-per-unit = 100
max-usage-per-unit = 0.8
unit = "1s"
quit-on-failure = true

[points]
max-size = 1000
interval = "30s"
buffer-path = "/var/lib/extractor/points.spill"

[events]
max-size = 500
interval = "1m"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadRunnerConfig(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)

	cfg, err := LoadRunnerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.FailurePct)
	assert.Equal(t, 8, cfg.Throttler.MaxParallel)
	assert.True(t, cfg.Throttler.QuitOnFailure)
	assert.Equal(t, 1000, cfg.Points.MaxSize)
	assert.Equal(t, "/var/lib/extractor/points.spill", cfg.Points.BufferPath)
}

func TestLoadRunnerConfigMissingFile(t *testing.T) {
	_, err := LoadRunnerConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestToThrottlerConfigResolvesUnit(t *testing.T) {
	tc := ThrottlerConfig{MaxParallel: 4, Unit: "1s", MaxPerUnit: 10}
	resolved, err := tc.ToThrottlerConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Second, resolved.Unit)
	assert.Equal(t, 4, resolved.MaxParallel)
}

func TestToQueueConfigResolvesInterval(t *testing.T) {
	qc := UploadQueueConfig{MaxSize: 50, Interval: "30s"}
	resolved, err := qc.ToQueueConfig()
	require.NoError(t, err)
	require.NotNil(t, resolved.Interval)
	assert.Equal(t, 30*time.Second, resolved.Interval.Value())
}

func TestToQueueConfigWithoutIntervalLeavesProviderNil(t *testing.T) {
	qc := UploadQueueConfig{MaxSize: 50}
	resolved, err := qc.ToQueueConfig()
	require.NoError(t, err)
	assert.Nil(t, resolved.Interval)
}
