package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("TOURNAMENT_DRAW_POLICY", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("R2_ACCOUNT_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file:pong.db", cfg.DatabaseURL)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, DrawPolicyReject, cfg.DrawPolicy)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown draw policy", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "")
		t.Setenv("TOURNAMENT_DRAW_POLICY", "coinflip")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://pong@localhost/pong?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TOURNAMENT_DRAW_POLICY", "ALLOW")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://pong.example")
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "results")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.pong.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, DrawPolicyAllow, cfg.DrawPolicy)
	assert.Equal(t, []string{"http://localhost:3000", "https://pong.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.ArchiveEnabled())
}
