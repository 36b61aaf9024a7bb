package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration. Every field is read from the
// environment at startup.
type Server struct {
	Addr     string `env:"ZKW_ADDR" envDefault:":4000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Database     DatabaseConfig
	DNS          DNSConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Verification VerificationConfig
}

// DatabaseConfig selects the store. An empty URL runs the in-memory backend.
type DatabaseConfig struct {
	URL              string        `env:"DATABASE_URL"`
	Driver           string        `env:"DATABASE_DRIVER" envDefault:"postgres"`
	MaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"0s"`
	TxTimeout        time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

// DNSConfig tunes TXT lookups. Server is an optional host:port resolver.
type DNSConfig struct {
	Timeout time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
	Server  string        `env:"DNS_SERVER"`
}

// RedisConfig enables the shared verification throttle when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables the audit relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers            []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic         string        `env:"AUDIT_TOPIC" envDefault:"zkw.audit"`
	TopicPartitions    int32         `env:"AUDIT_TOPIC_PARTITIONS" envDefault:"3"`
	TopicReplication   int16         `env:"AUDIT_TOPIC_REPLICATION" envDefault:"1"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

type VerificationConfig struct {
	CheckInterval time.Duration `env:"VERIFY_CHECK_INTERVAL" envDefault:"10s"`
}

// Load builds a Server config from environment variables.
func Load() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", c.Database.Driver)
	}
	if c.DNS.Timeout <= 0 {
		return fmt.Errorf("DNS_TIMEOUT must be positive")
	}
	if c.Database.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive")
	}
	return nil
}

// UsesMemory reports whether no database is configured.
func (c Server) UsesMemory() bool {
	return c.Database.URL == ""
}
