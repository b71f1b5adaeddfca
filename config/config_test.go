package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "A4", cfg.PDF.PageSize)
	assert.Equal(t, "P", cfg.PDF.Orientation)
	assert.Equal(t, 12.0, cfg.PDF.FontSize)
	assert.Equal(t, 10.0, cfg.PDF.LineHeight)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, time.Hour, cfg.Database.MaxLifetime)
	assert.True(t, cfg.Cache.Enable)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "doc2pdf", cfg.Cache.Prefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Queue.Enable)
	assert.Equal(t, time.Minute, cfg.Queue.RetryDelay)
	assert.Equal(t, 3, cfg.Queue.Queues["default"])
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("MINIO_SECRET", "s3cr3t")
	t.Setenv("DOC2PDF_SERVER_PORT", "9090")

	path := writeConfig(t, `
server:
  port: 8000
pdf:
  page_size: Letter
  orientation: L
  font_size: 10
storage:
  type: minio
  minio:
    endpoint: minio:9000
    secret_key: ${MINIO_SECRET}
queue:
  enable: true
  retry_delay: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// 环境变量优先于配置文件
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Letter", cfg.PDF.PageSize)
	assert.Equal(t, "L", cfg.PDF.Orientation)
	assert.Equal(t, 10.0, cfg.PDF.FontSize)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "minio:9000", cfg.Storage.Minio.Endpoint)
	assert.Equal(t, "s3cr3t", cfg.Storage.Minio.SecretKey)
	assert.True(t, cfg.Queue.Enable)
	assert.Equal(t, 30*time.Second, cfg.Queue.RetryDelay)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad page size", "pdf:\n  page_size: B5\n"},
		{"bad orientation", "pdf:\n  orientation: X\n"},
		{"zero font size", "pdf:\n  font_size: 0\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}
