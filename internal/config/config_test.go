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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  driver: memory
jwt:
  secret: a-very-long-test-secret
outbox:
  retry_attempts: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2, cfg.Outbox.RetryAttempts)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "repair-events", cfg.Kafka.Topic)
	assert.Equal(t, 24, cfg.JWT.ExpiryHours)
	assert.Equal(t, 8081, cfg.Outbox.HealthPort)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
jwt:
  secret: a-very-long-test-secret
outbox:
  health_port: 9191
`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Outbox.HealthPort)

	t.Setenv("REPAIR_OUTBOX_HEALTH_PORT", "9292")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 9292, cfg.Outbox.HealthPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
jwt:
  secret: a-very-long-test-secret
`)
	t.Setenv("REPAIR_JWT_SECRET", "secret-from-the-environment")
	t.Setenv("REPAIR_STORAGE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("REPAIR_OUTBOX_POLL_INTERVAL", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-the-environment", cfg.JWT.Secret)
	assert.Equal(t, "mongodb://db:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: cassandra
jwt:
  secret: short
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
	assert.Contains(t, err.Error(), "Secret")
}
