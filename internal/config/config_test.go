package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv сбрасывает переменные окружения, влияющие на Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ACQUIRE_CONFIG", "API_PORT", "DB_URL", "SQLITE_PATH", "RABBITMQ_URL",
		"WEBHOOK_URL", "PLAN_LIBRARY", "METADATA_TEMPLATE", "TRACING_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acquire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Coordinator.PollInterval)
	assert.Equal(t, 1, cfg.Coordinator.DefaultPriority)
	assert.Equal(t, "server", cfg.Coordinator.DefaultMetadata["location"])
	assert.False(t, cfg.Store.UsePostgres())
	assert.False(t, cfg.MQ.Enabled())
	assert.Equal(t, "acquire.db", cfg.Store.SQLitePath)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
coordinator:
  poll_interval: 250ms
  default_metadata:
    beamline: 7.3.3
store:
  database_url: postgres://acquire@db/acquire
schedules:
  - name: nightly-dark
    plan: count
    cron: "0 2 * * *"
    enabled: true
    parameters:
      num: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.Coordinator.PollInterval)
	assert.Equal(t, "7.3.3", cfg.Coordinator.DefaultMetadata["beamline"])
	assert.True(t, cfg.Store.UsePostgres())
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "0 2 * * *", cfg.Schedules[0].CronExpr)
	assert.Equal(t, 10, cfg.Schedules[0].Parameters["num"])
	// Не заданные в файле значения берутся по умолчанию
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("API_PORT", "7000")
	t.Setenv("DB_URL", "postgres://env")
	t.Setenv("SQLITE_PATH", "/data/acquire.db")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("WEBHOOK_URL", "http://archive:9000/documents")
	t.Setenv("PLAN_LIBRARY", "/plans")
	t.Setenv("METADATA_TEMPLATE", "/etc/acquire/metadata.yaml")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres://env", cfg.Store.DatabaseURL)
	assert.Equal(t, "/data/acquire.db", cfg.Store.SQLitePath)
	assert.True(t, cfg.MQ.Enabled())
	assert.Equal(t, "http://archive:9000/documents", cfg.Webhook.URL)
	assert.Equal(t, "/plans", cfg.Library.Dir)
	assert.Equal(t, "/etc/acquire/metadata.yaml", cfg.Metadata.TemplatePath)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACQUIRE_CONFIG", writeConfig(t, "server:\n  port: 6000\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "server: ["},
		{name: "port out of range", content: "server:\n  port: 70000\n"},
		{name: "reserved default metadata", content: "coordinator:\n  default_metadata:\n    scan_id: 3\n"},
		{name: "schedule without plan", content: "schedules:\n  - name: s\n    interval_sec: 60\n"},
		{name: "schedule without trigger", content: "schedules:\n  - name: s\n    plan: count\n"},
		{
			name:    "duplicate schedule",
			content: "schedules:\n  - {name: s, plan: count, interval_sec: 5}\n  - {name: s, plan: scan, interval_sec: 5}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
