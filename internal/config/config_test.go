package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmt/plus2flickr/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "s3cret", cfg.SessionSecret)
		assert.Equal(t, "http://localhost:5173", cfg.AllowedOrigin)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")
		t.Setenv("PORT", "9090")
		t.Setenv("GOOGLE_CLIENT_ID", "gid")
		t.Setenv("GOOGLE_CLIENT_SECRET", "gsecret")
		t.Setenv("FLICKR_CONSUMER_KEY", "fkey")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "gid", cfg.Providers.Google.ClientID)
		assert.Equal(t, "fkey", cfg.Providers.Flickr.ConsumerKey)
	})

	t.Run("missing session secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_SECRET")
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")
		t.Setenv("PORT", "not-a-number")

		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("providers file takes precedence over env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "providers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
google:
  client_id: file-gid
  client_secret: file-gsecret
flickr:
  consumer_key: file-fkey
  consumer_secret: file-fsecret
`), 0o600))

		t.Setenv("SESSION_SECRET", "s3cret")
		t.Setenv("GOOGLE_CLIENT_ID", "env-gid")
		t.Setenv("PROVIDERS_CONFIG", path)

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, "file-gid", cfg.Providers.Google.ClientID)
		assert.Equal(t, "file-fkey", cfg.Providers.Flickr.ConsumerKey)
	})

	t.Run("missing providers file", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "s3cret")
		t.Setenv("PROVIDERS_CONFIG", "/does/not/exist.yaml")

		_, err := config.Load()
		require.Error(t, err)
	})
}
