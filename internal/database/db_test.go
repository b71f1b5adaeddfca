package database

import (
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc2pdf/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupAndClose(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "nested", "dir", "doc2pdf.db")

	require.NoError(t, Setup(cfg, log))
	require.NotNil(t, DB)
	defer func() { DB = nil }()

	assert.True(t, DB.Migrator().HasTable(&models.Conversion{}))
	assert.FileExists(t, cfg.DSN)
	assert.NoError(t, Close())
}

func TestOpenUnsupportedType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = "mysql"

	_, err := Open(cfg, logrus.New())
	assert.Error(t, err)
}
