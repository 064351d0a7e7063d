package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9090"
week_start: Sunday
default_view: year
store_timeout: 3s
recurrence:
  cache_enabled: false
  month_policy: rollover
log:
  level: debug
  format: xml
generator:
  enabled: false
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, "week", cfg.DefaultView)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 30, cfg.MinEventMinutes)
	assert.False(t, cfg.Recurrence.CacheEnabled)
	assert.Equal(t, "rollover", cfg.Recurrence.MonthPolicy)
	assert.Equal(t, 100_000, cfg.Recurrence.MaxIterations)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Generator.Enabled)
	assert.Equal(t, "@every 30s", cfg.Generator.Schedule)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	assert.Error(t, Save(path, nil))
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.SeedFile = "seed.ics"
	cfg.SnapMinutes = 5
	cfg.Recurrence.CacheTTL = time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LUMENCAL_LISTEN=0.0.0.0:7000\nLUMENCAL_LOG_LEVEL=warn\n"), 0o600))

	t.Run("file", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv(envPath))
		assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("process wins", func(t *testing.T) {
		t.Setenv(EnvLogLevel, "ERROR")
		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv(envPath))
		assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
		assert.Equal(t, "error", cfg.Log.Level)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv(filepath.Join(dir, "missing.env")))
		assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
	})
}
