package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Audit store backends.
const (
	AuditMemory   = "memory"
	AuditPostgres = "postgres"
	AuditRedis    = "redis"
)

// PSEE event sources.
const (
	SourceNone     = "none"
	SourcePostgres = "postgres"
	SourceKafka    = "kafka"
)

// Server captures process level configuration.
type Server struct {
	Addr        string `env:"MGCORE_ADDR" envDefault:":8080"`
	LogLevel    string `env:"MGCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"MGCORE_LOG_FORMAT" envDefault:"json"`
	DatabaseURL string `env:"MGCORE_DATABASE_URL"`
	AuditStore  string `env:"MGCORE_AUDIT_BACKEND" envDefault:"memory"`
	EventSource string `env:"MGCORE_EVENT_SOURCE" envDefault:"none"`

	Redis   RedisConfig
	Kafka   KafkaConfig
	PSEE    PSEEConfig
	Economy EconomyConfig
}

// RedisConfig holds connection settings for the Redis audit backend.
type RedisConfig struct {
	URL          string        `env:"MGCORE_REDIS_URL"`
	PoolSize     int           `env:"MGCORE_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MGCORE_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"MGCORE_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"MGCORE_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"MGCORE_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers []string `env:"MGCORE_KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"MGCORE_KAFKA_TOPIC" envDefault:"psee-events"`
}

type PSEEConfig struct {
	PollIntervalMS int           `env:"PSEE_POLL_INTERVAL_MS" envDefault:"5000"`
	FetchTimeout   time.Duration `env:"PSEE_FETCH_TIMEOUT" envDefault:"3s"`
	BatchSize      int           `env:"PSEE_BATCH_SIZE" envDefault:"500"`
}

// PollInterval converts PollIntervalMS to a duration.
func (c PSEEConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

type EconomyConfig struct {
	BalanceFloor     int64         `env:"ECONOMY_BALANCE_FLOOR" envDefault:"1"`
	AuditTimeout     time.Duration `env:"ECONOMY_AUDIT_TIMEOUT" envDefault:"2s"`
	GovernancePolicy string        `env:"ECONOMY_GOVERNANCE_POLICY"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks backend choices and the settings they depend on.
func (c Server) Validate() error {
	switch c.AuditStore {
	case AuditMemory:
	case AuditPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MGCORE_DATABASE_URL is required for the postgres audit backend")
		}
	case AuditRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("MGCORE_REDIS_URL is required for the redis audit backend")
		}
	default:
		return fmt.Errorf("unknown audit backend %q", c.AuditStore)
	}

	switch c.EventSource {
	case SourceNone:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MGCORE_DATABASE_URL is required for the postgres event source")
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("MGCORE_KAFKA_BROKERS is required for the kafka event source")
		}
	default:
		return fmt.Errorf("unknown event source %q", c.EventSource)
	}

	if c.PSEE.PollIntervalMS <= 0 {
		return fmt.Errorf("PSEE_POLL_INTERVAL_MS must be positive, got %d", c.PSEE.PollIntervalMS)
	}
	if c.Economy.BalanceFloor < 0 {
		return fmt.Errorf("ECONOMY_BALANCE_FLOOR must not be negative, got %d", c.Economy.BalanceFloor)
	}
	return nil
}
