package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
catalog:
  file: /data/active.tle
  extra_urls: [https://example.test/a]
screening:
  target_id: 25544
  threshold_km: 50
  horizon: 12h
  step: 30s
  epoch: 2025-02-14T12:00:00Z
  tiers:
    high_km: 5
    medium_km: 20
`), 0o644))

	t.Setenv("CONJSCREEN_SCREEN_THRESHOLD_KM", "75")
	t.Setenv("CONJSCREEN_CATALOG_EXTRA_URLS", "https://a.test,https://b.test")
	t.Setenv("CONJSCREEN_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/data/active.tle", cfg.Catalog.File)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Catalog.ExtraURLs)
	assert.Equal(t, 25544, cfg.Screening.TargetID)
	assert.Equal(t, 75.0, cfg.Screening.ThresholdKm, "env overrides file")
	assert.Equal(t, 0.01, cfg.Screening.FloorKm, "default survives")
	assert.Equal(t, 12*time.Hour, cfg.Screening.Horizon)
	assert.Equal(t, 30*time.Second, cfg.Screening.Step)
	assert.Equal(t, 5.0, cfg.Screening.Tiers.HighKm)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	rc := cfg.Screening.RunConfig(time.Now())
	assert.Equal(t, time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC), rc.Epoch.UTC())
	assert.Equal(t, 75.0, rc.ThresholdKm)
}

func TestLoadBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("screening: [oops"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("CONJSCREEN_SCREEN_STEP", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestRunConfigDefaultEpoch(t *testing.T) {
	s := Default().Screening
	now := time.Date(2025, 2, 14, 12, 3, 27, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 14, 12, 3, 0, 0, time.UTC), s.RunConfig(now).Epoch)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.AuthEnabled = true
	cfg.Screening.Tiers.HighKm = 80
	cfg.RunCache.MaxEntries = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKEN")
	assert.Contains(t, err.Error(), "high_km")
	assert.Contains(t, err.Error(), "max_entries")
}
