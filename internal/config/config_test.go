package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/tagsync
crm:
  base_url: https://crm.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60, cfg.CRM.TimeoutSeconds)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 1000, cfg.Sync.BatchDelayMillis)
	assert.Equal(t, "active_enrollments", cfg.Monitoring.Scope)
	assert.Equal(t, 180, cfg.Monitoring.RetentionDays)
	assert.Equal(t, 1, cfg.Monitoring.RunWeekday)
	assert.Equal(t, 8, cfg.Monitoring.RunHour)
	assert.Equal(t, 587, cfg.Alerts.SMTPPort)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "postgres://localhost/tagsync", cfg.Database.URL)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 10.0.0.5
monitoring:
  enabled: true
  scope: all_contacts
  batch_size: 25
  retention_days: 90
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "10.0.0.5", cfg.Server.Host)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "all_contacts", cfg.Monitoring.Scope)
	assert.Equal(t, 25, cfg.Monitoring.BatchSize)
	assert.Equal(t, 90, cfg.Monitoring.RetentionDays)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file-value
crm:
  username: file-user
`)

	t.Setenv("DATABASE_URL", "postgres://env-value")
	t.Setenv("CRM_USERNAME", "env-user")
	t.Setenv("CRM_PASSWORD", "env-pass")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-value", cfg.Database.URL)
	assert.Equal(t, "env-user", cfg.CRM.Username)
	assert.Equal(t, "env-pass", cfg.CRM.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
