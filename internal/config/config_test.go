package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://cms@localhost/cms?sslmode=disable
jwt:
  secret: s3cret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.AllowRegistration)
	assert.False(t, cfg.Server.Maintenance)
	assert.Equal(t, "./media", cfg.Server.MediaRoot)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  maintenance: true
  allow_registration: false
database:
  url: postgres://db
jwt:
  secret: s3cret
  access_ttl: 5m
redis:
  enabled: true
  addr: redis:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.Maintenance)
	assert.False(t, cfg.Server.AllowRegistration)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  url: postgres://file
jwt:
  secret: from-file
`)
	t.Setenv("CMS_DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CMS_SERVER_PORT", "9100")
	t.Setenv("CMS_SERVER_MAINTENANCE", "true")
	t.Setenv("CMS_JWT_REFRESH_TTL", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Server.Maintenance)
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshTTL)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("CMS_DATABASE_URL", "postgres://env")
	t.Setenv("CMS_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
}

func TestLoadRequiresSecretAndDatabase(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
}
