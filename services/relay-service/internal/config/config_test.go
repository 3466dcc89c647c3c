package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://relay@localhost/playhub")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("GAME_STREAM_PARTITIONS", "24")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, LockLocal, cfg.Lock)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
	assert.Equal(t, "user", cfg.Streams.User.Topic)
	assert.Equal(t, 24, cfg.Streams.Game.Partitions)
	assert.Equal(t, 6, cfg.Streams.Bet.Partitions)
}

func TestLoadRequiresBackendSettings(t *testing.T) {
	t.Setenv("OUTBOX_BACKEND", "mongo")
	t.Setenv("RELAY_LOCK", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "REDIS_ADDR")
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoadRejectsUnknownLock(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://relay@localhost/playhub")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("RELAY_LOCK", "zookeeper")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_LOCK")
}
