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
	t.Setenv("UPLOADS_SIGNER_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.APIHost)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "uploads", cfg.Database.Name)
	assert.Equal(t, "uploads", cfg.Signer.Bucket)
	assert.Equal(t, 15*time.Minute, cfg.Signer.PermissionTTL)
	assert.Equal(t, "env-secret", cfg.Signer.Secret)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadRequiresSignerSecret(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UPLOADS_SIGNER_SECRET", "env-secret")
	t.Setenv("UPLOADS_SERVER_API_HOST", "127.0.0.1:9999")
	t.Setenv("UPLOADS_DATABASE_PORT", "5433")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.APIHost)
	assert.Equal(t, 5433, cfg.Database.Port)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("UPLOADS_SIGNER_SECRET", "env-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  api_host: "10.0.0.1:8081"
signer:
  bucket: "ingest"
  permission_ttl: "30m"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:8081", cfg.Server.APIHost)
	assert.Equal(t, "ingest", cfg.Signer.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.Signer.PermissionTTL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0:4000", cfg.Server.DebugHost)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5432, User: "svc", Password: "pw",
		Name: "uploads", SSLMode: "require",
	}
	assert.Equal(t, "postgres://svc:pw@db.internal:5432/uploads?sslmode=require", cfg.DSN())
}
