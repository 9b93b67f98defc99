package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET_KEY", "signing-secret")
	t.Setenv("MONGODB_CONNSTRING", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "signing-secret", cfg.SessionSecret)
	assert.Equal(t, "conference-go", cfg.MongoDBName)
	assert.Equal(t, "./database/conferences.json", cfg.LocalDBPath)
	assert.Equal(t, 24*time.Hour, cfg.PhotoCacheTTL)
	assert.Equal(t, ":80", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.UsesMongo())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET_KEY", "signing-secret")
	t.Setenv("MONGODB_CONNSTRING", "mongodb://localhost:27017")
	t.Setenv("PHOTO_CACHE_TTL", "90m")
	t.Setenv("LISTEN_ADDR", ":8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsesMongo())
	assert.Equal(t, 90*time.Minute, cfg.PhotoCacheTTL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET_KEY")
}

func TestLoadStore(t *testing.T) {
	t.Setenv("SESSION_SECRET_KEY", "")
	t.Setenv("MONGODB_CONNSTRING", "")
	t.Setenv("LOCAL_DB_PATH", "/tmp/conferences.json")
	t.Setenv("PASSWORD_PEPPER", "pepper")

	cfg, err := LoadStore()
	require.NoError(t, err, "the session secret is not a store setting")
	assert.False(t, cfg.UsesMongo())
	assert.Equal(t, "/tmp/conferences.json", cfg.LocalDBPath)
	assert.Equal(t, "pepper", cfg.PasswordPepper)
	assert.Equal(t, "conference-go", cfg.MongoDBName)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_SECRET_KEY", "signing-secret")
	t.Setenv("PHOTO_CACHE_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetSecret(t *testing.T) {
	t.Setenv("CONFERENCE_TEST_SECRET", "value")

	val, err := GetSecret("CONFERENCE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	_, err = GetSecret("CONFERENCE_TEST_SECRET_MISSING")
	assert.Error(t, err)
}
