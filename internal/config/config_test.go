package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.Solver.MaxExactJobs)
	assert.Equal(t, "auto", cfg.Solver.DefaultAlgorithm)
	assert.Equal(t, 10, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, "dev", cfg.Auth.Mode)
	assert.Equal(t, "memory", cfg.StoreKind())
	assert.True(t, cfg.DBMigrate)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vrp.yaml")
	doc := `
port: "9000"
sqlite_path: /tmp/vrp.db
solver:
  max_exact_jobs: 6
  objective: travel
webhooks:
  poll_interval: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := load("", env(map[string]string{
		"VRP_CONFIG":     path,
		"PORT":           "9100",
		"EXACT_MAX_JOBS": "5",
		"RATE_RPS":       "2.5",
		"ALLOW_ORIGINS":  "http://a, http://b",
		"DB_MIGRATE":     "false",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, 5, cfg.Solver.MaxExactJobs)
	assert.Equal(t, "travel", cfg.Solver.Objective)
	assert.Equal(t, 500*time.Millisecond, cfg.Webhooks.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2.5, cfg.Rate.RPS)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowOrigins)
	assert.Equal(t, "sqlite", cfg.StoreKind())
	assert.False(t, cfg.DBMigrate)
}

func TestEnvErrors(t *testing.T) {
	_, err := load("", env(map[string]string{"EXACT_MAX_JOBS": "many", "RATE_RPS": "fast"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXACT_MAX_JOBS")
	assert.Contains(t, err.Error(), "RATE_RPS")
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"hmac without secret": {"AUTH_MODE": "hmac"},
		"jwks without url":    {"AUTH_MODE": "jwks"},
		"unknown auth":        {"AUTH_MODE": "basic"},
		"bad algorithm":       {"DEFAULT_ALGORITHM": "alns"},
		"bad objective":       {"OBJECTIVE": "distance"},
		"negative ceiling":    {"EXACT_MAX_JOBS": "-1"},
		"zero attempts":       {"WEBHOOK_MAX_ATTEMPTS": "0"},
		"two databases":       {"DATABASE_URL": "postgres://x", "SQLITE_PATH": "x.db"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load("", env(vars))
			assert.Error(t, err)
		})
	}

	cfg, err := load("", env(map[string]string{"AUTH_MODE": "HMAC", "AUTH_HMAC_SECRET": "s"}))
	require.NoError(t, err)
	assert.Equal(t, "hmac", cfg.Auth.Mode)
}

func TestMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.Error(t, err)
}
