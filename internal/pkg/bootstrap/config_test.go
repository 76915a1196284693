package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
service:
  name: economy-service
  port: 9000
  log_level: debug
infra:
  redis:
    addr: redis:6379
    cache_ttl: 30s
  kafka:
    brokers: [kafka-1:9092, kafka-2:9092]
    chat_topic: chat-records
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAMLAndDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, LoadYAML(writeConfig(t, sampleConfig), &cfg))
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "economy-service", cfg.Service.Name)
	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, 30*time.Second, cfg.Infra.Redis.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Service.ShutdownTimeout)
	assert.Empty(t, cfg.Infra.Database.DSN)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("DATABASE_DSN", "root:pw@tcp(db:3306)/economy?parseTime=true")
	t.Setenv("KAFKA_BROKERS", " a:1 , b:2 ,")
	t.Setenv("ZK_SERVERS", "zk:2181")

	var cfg Config
	require.NoError(t, LoadYAML(writeConfig(t, sampleConfig), &cfg))
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, 7070, cfg.Service.Port)
	assert.Equal(t, "root:pw@tcp(db:3306)/economy?parseTime=true", cfg.Infra.Database.DSN)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, []string{"zk:2181"}, cfg.Infra.Zookeeper.Servers)
}

func TestConfigErrors(t *testing.T) {
	var cfg Config
	assert.Error(t, LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
	assert.Error(t, LoadYAML(writeConfig(t, "service: [unclosed"), &cfg))

	t.Setenv("HTTP_PORT", "eighty")
	assert.Error(t, cfg.ApplyEnv())
}
