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
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "disk", cfg.StorageBackend)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, int64(100)<<20, cfg.MaxUploadSize)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.BlockTTL)
	assert.Equal(t, 24*time.Hour, cfg.SweepGrace)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "*", cfg.CORSAllowedOrigins)
	assert.Equal(t, 20, cfg.DBMaxConnections())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("BLOCK_TTL_HOURS", "48")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "0")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "transfers")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 48*time.Hour, cfg.BlockTTL)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DatabaseURL())
	assert.Equal(t, "s3", cfg.StorageBackend)
	assert.Equal(t, "transfers", cfg.S3.Bucket)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_addr: \":7070\"\nblock_ttl_hours: 12\nupload_dir: /data/uploads\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(dir, "nope.yaml"))

	cfg := Load()
	assert.Equal(t, ":7070", cfg.ServerAddr)
	assert.Equal(t, 12*time.Hour, cfg.BlockTTL)
	assert.Equal(t, "/data/uploads", cfg.UploadDir)
}
