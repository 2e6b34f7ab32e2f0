package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceEnvKeys = []string{
	"HTTP_ADDR", "DATABASE_URL", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY",
	"MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL", "FUSION_CONFIG",
}

func clearServiceEnv(t *testing.T) {
	t.Helper()
	for _, key := range serviceEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	clearServiceEnv(t)

	cfg, err := LoadServiceConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceConfig(), cfg)
}

func TestLoadServiceConfigFromEnvFile(t *testing.T) {
	clearServiceEnv(t)
	for _, key := range serviceEnvKeys {
		require.NoError(t, os.Unsetenv(key))
	}

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"HTTP_ADDR=:9090\nMINIO_BUCKET=runs\nMINIO_USE_SSL=true\nFUSION_CONFIG=/etc/dss/tuning.json\n",
	), 0o644))

	cfg, err := LoadServiceConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "runs", cfg.MinioBucket)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, "/etc/dss/tuning.json", cfg.FusionConfig)
	assert.Equal(t, DefaultServiceConfig().DatabaseURL, cfg.DatabaseURL)
}

func TestLoadServiceConfigEnvironmentWins(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("HTTP_ADDR", ":7000")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_ADDR=:9090\n"), 0o644))

	cfg, err := LoadServiceConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestLoadServiceConfigInvalidSSL(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("MINIO_USE_SSL", "sometimes")

	_, err := LoadServiceConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
