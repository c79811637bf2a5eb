package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	assert.Equal(t, "http", cfg.Fetch.Strategy)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 60, cfg.Interval.DefaultSecs)
	assert.Equal(t, 30, cfg.Interval.MinSecs)
	assert.Equal(t, 300, cfg.Interval.MaxSecs)
	assert.Equal(t, 15, cfg.Interval.DecreaseStepSecs)
	assert.Equal(t, 30, cfg.Interval.IncreaseStepSecs)
	assert.Equal(t, 3, cfg.Interval.NoChangeThreshold)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 7, cfg.Retention.KeepDays)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sources.yaml", cfg.Sources)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/tradebot
fetch:
  strategy: session
  timeout_secs: 10
interval:
  default_secs: 120
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/tradebot", cfg.Store.DatabaseURL)
	assert.Equal(t, "session", cfg.Fetch.Strategy)
	assert.Equal(t, 10, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 120, cfg.Interval.DefaultSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched defaults survive partial files.
	assert.Equal(t, 300, cfg.Interval.MaxSecs)
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	yaml := `
sources:
  - name: fxleaders
    url: https://www.fxleaders.com/live-forex-signals
    login_url: https://www.fxleaders.com/login
    username_env: FXLEADERS_USERNAME
    password_env: FXLEADERS_PASSWORD
    enabled: true
  - name: secondary
    url: https://example.com/signals
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "fxleaders", sources[0].Name)
	assert.True(t, sources[0].Enabled)

	enabled := EnabledSources(sources)
	require.Len(t, enabled, 1)
	assert.Equal(t, "fxleaders", enabled[0].Name)
}

func TestLoadSources_CredentialEnvResolution(t *testing.T) {
	t.Setenv("TEST_SRC_USER", "trader")
	t.Setenv("TEST_SRC_PASS", "hunter2")

	s := Source{UsernameEnv: "TEST_SRC_USER", PasswordEnv: "TEST_SRC_PASS"}
	assert.Equal(t, "trader", s.Username())
	assert.Equal(t, "hunter2", s.Password())

	empty := Source{}
	assert.Empty(t, empty.Username())
	assert.Empty(t, empty.Password())
}

func TestLoadSources_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: dup\n    url: https://a\n    enabled: true\n  - name: dup\n    url: https://b\n    enabled: true\n"), 0o644))
	_, err := LoadSources(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - url: https://a\n"), 0o644))
	_, err = LoadSources(path)
	assert.Error(t, err)
}
