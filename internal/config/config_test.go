package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATABASE_URL", "CLERK_SECRET_KEY", "PUBLIC_BASE_URL", "SHARE_TTL",
		"ASSET_TABLE", "ASSETS_DIR", "METRICS_USER", "METRICS_PASS", "PPROF_SECRET", "TRUST_PROXY", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/collage")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, ":3333", cfg.Addr())
	assert.Equal(t, "http://localhost:3333", cfg.PublicBaseURL)
	assert.Equal(t, 720*time.Hour, cfg.ShareTTL)
	assert.Equal(t, "./assets", cfg.AssetsDir)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.ClerkSecretKey)
	assert.False(t, cfg.TrustProxy)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db/collage")
	t.Setenv("PORT", "8080")
	t.Setenv("PUBLIC_BASE_URL", "https://collage.example.com/")
	t.Setenv("SHARE_TTL", "48h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ASSET_TABLE", "assets.toml")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "https://collage.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 48*time.Hour, cfg.ShareTTL)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "assets.toml", cfg.AssetTable)
	assert.True(t, cfg.TrustProxy)
}

func TestFromEnv_Errors(t *testing.T) {
	clearEnv(t)
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)

	t.Setenv("DATABASE_URL", "postgres://db/collage")

	t.Setenv("SHARE_TTL", "forever")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("SHARE_TTL", "-1h")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("SHARE_TTL", "")
	t.Setenv("TRUST_PROXY", "maybe")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("TRUST_PROXY", "")
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = FromEnv()
	assert.Error(t, err)
}
