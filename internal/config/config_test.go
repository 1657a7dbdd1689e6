package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_ENDPOINT", "db.example.com")
	t.Setenv("DB_USERNAME", "probe")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "appdb")
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", cfg.Database.Endpoint)
	assert.Equal(t, "probe", cfg.Database.Username)
	assert.Equal(t, "appdb", cfg.Database.Name)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "oneshot", cfg.Probe.Mode)
	assert.Equal(t, 5*time.Second, cfg.Probe.PrecheckTimeout)
	assert.Equal(t, 10*time.Second, cfg.Probe.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.Probe.QueryTimeout)
	assert.Equal(t, 5, cfg.Probe.Pool.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Probe.Pool.ConnMaxLifetime)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_ENDPOINT", "db.example.com")
	// username, password and name missing

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":8181"
database:
  endpoint: db.internal
  username: probe
  password: secret
  name: appdb
probe:
  mode: pool
  precheck: true
log:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8181", cfg.Server.Address)
	assert.Equal(t, "db.internal", cfg.Database.Endpoint)
	assert.Equal(t, "pool", cfg.Probe.Mode)
	assert.True(t, cfg.Probe.Precheck)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  endpoint: db.internal
  username: probe
  password: secret
  name: appdb
probe:
  mode: bursty
`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}
