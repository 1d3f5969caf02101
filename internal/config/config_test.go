package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("URL", "")
	t.Setenv("PORT", "")
	t.Setenv("SESSION_KEYS", "")
	t.Setenv("BLOB_BACKEND", "")
	t.Setenv("MAX_UPLOAD_MB", "")

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, []string{"tolet"}, cfg.SessionKeys)
	assert.Equal(t, BlobLocal, cfg.BlobBackend)
	assert.True(t, cfg.LocalBlobs())
	assert.Zero(t, cfg.MaxUploadBytes)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("URL", "mongodb://localhost:27017/tolet")
	t.Setenv("SESSION_KEYS", "new, old ,")
	t.Setenv("BLOB_BACKEND", "MINIO")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("IMAGE_TRANSFORM", "false")
	t.Setenv("IMAGE_WIDTH", "not-a-number")

	cfg := Load()

	assert.Equal(t, "mongodb://localhost:27017/tolet", cfg.DatabaseURL)
	assert.Equal(t, []string{"new", "old"}, cfg.SessionKeys)
	assert.Equal(t, BlobMinio, cfg.BlobBackend)
	assert.False(t, cfg.LocalBlobs())
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.ImageTransform)
	assert.Equal(t, 300, cfg.ImageWidth)
}

func TestDatabaseURLTakesPrecedence(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://a@b/c")
	t.Setenv("URL", "mongodb://ignored")

	assert.Equal(t, "postgres://a@b/c", Load().DatabaseURL)
}
