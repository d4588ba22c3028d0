package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearOverrides(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "BACKEND_BASE_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearOverrides(t)
	t.Setenv("FN_URL", "https://functions.example.com")
	t.Setenv("TEST_REDIS_PASSWORD", "s3cret")

	path := writeConfig(t, `
server:
  port: "9090"
  env: production
backend:
  base_url: "${FN_URL}"
  timeout: 5s
cookies:
  secure: true
redis:
  redis_addr: "redis:6379"
  redis_password: "${TEST_REDIS_PASSWORD}"
cache:
  summary_ttl: 2m
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://functions.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Cookies.Secure)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Cache.SummaryTTL)

	assert.Equal(t, defaultOTPRequests, cfg.RateLimit.OTPRequests)
	assert.Equal(t, defaultOTPWindow, cfg.RateLimit.OTPWindow)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile_EnvironmentOverrides(t *testing.T) {
	clearOverrides(t)
	t.Setenv("PORT", "7000")
	t.Setenv("BACKEND_BASE_URL", "http://override")

	path := writeConfig(t, `
backend:
  base_url: "http://from-file"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "http://override", cfg.Backend.BaseURL)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, defaultBackendTimeout, cfg.Backend.Timeout)
}

func TestLoadFile_RequiresBackend(t *testing.T) {
	clearOverrides(t)
	t.Setenv("MISSING_FN_URL", "")

	_, err := LoadFile(writeConfig(t, `
backend:
  base_url: "${MISSING_FN_URL}"
`))
	assert.ErrorContains(t, err, "backend.base_url")
}

func TestLoad_ReadsEnvironmentFile(t *testing.T) {
	clearOverrides(t)
	t.Setenv("BACKEND_BASE_URL", "http://functions.local")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod.yml"), []byte("server:\n  port: \"8443\"\n"), 0o600))
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load(EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "8443", cfg.Server.Port)
	assert.Equal(t, EnvProduction, cfg.Server.Env)
}
