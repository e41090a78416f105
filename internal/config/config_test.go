package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSETCACHE_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Origin)
	assert.Equal(t, ":8081", cfg.Listen)
	assert.Equal(t, 6, cfg.InstallConcurrency)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.False(t, cfg.Compress)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ASSETCACHE_DIR", dir)
	t.Setenv("ASSETCACHE_ORIGIN", "https://zyzz.example")
	t.Setenv("ASSETCACHE_VERSION", "zyzz-legacy-v2")
	t.Setenv("ASSETCACHE_COMPRESS", "true")
	t.Setenv("ASSETCACHE_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.CacheDir)
	assert.Equal(t, "zyzz-legacy-v2", cfg.Version)
	assert.True(t, cfg.Compress)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)

	u, err := cfg.OriginURL()
	require.NoError(t, err)
	assert.Equal(t, "zyzz.example", u.Host)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("ASSETCACHE_INSTALL_CONCURRENCY", "many")

	_, err := Load()
	require.Error(t, err)
}

func TestOriginURLRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := Config{Origin: "/just/a/path"}.OriginURL()
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := Config{LogLevel: "debug", LogFormat: "json"}.Logger(&buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = Config{LogLevel: "loud"}.Logger(&buf)
	require.Error(t, err)

	_, err = Config{LogLevel: "info", LogFormat: "xml"}.Logger(&buf)
	require.Error(t, err)
}
