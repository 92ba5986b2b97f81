package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, AuditMemory, cfg.AuditStore)
	assert.Equal(t, SourceNone, cfg.EventSource)
	assert.Equal(t, 5*time.Second, cfg.PSEE.PollInterval())
	assert.Equal(t, 3*time.Second, cfg.PSEE.FetchTimeout)
	assert.Equal(t, 500, cfg.PSEE.BatchSize)
	assert.Equal(t, int64(1), cfg.Economy.BalanceFloor)
	assert.Equal(t, 2*time.Second, cfg.Economy.AuditTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MGCORE_EVENT_SOURCE", "kafka")
	t.Setenv("MGCORE_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("PSEE_POLL_INTERVAL_MS", "250")
	t.Setenv("ECONOMY_BALANCE_FLOOR", "10")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.PSEE.PollInterval())
	assert.Equal(t, int64(10), cfg.Economy.BalanceFloor)
}

func TestValidate(t *testing.T) {
	base := func() Server {
		return Server{AuditStore: AuditMemory, EventSource: SourceNone, PSEE: PSEEConfig{PollIntervalMS: 5000}}
	}

	cases := map[string]func(*Server){
		"postgres audit without dsn":  func(c *Server) { c.AuditStore = AuditPostgres },
		"redis audit without url":     func(c *Server) { c.AuditStore = AuditRedis },
		"unknown audit backend":       func(c *Server) { c.AuditStore = "s3" },
		"kafka without brokers":       func(c *Server) { c.EventSource = SourceKafka },
		"postgres source without dsn": func(c *Server) { c.EventSource = SourcePostgres },
		"unknown source":              func(c *Server) { c.EventSource = "nats" },
		"zero poll interval":          func(c *Server) { c.PSEE.PollIntervalMS = 0 },
		"negative floor":              func(c *Server) { c.Economy.BalanceFloor = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}
