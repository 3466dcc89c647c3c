package config

import (
	"errors"
	"fmt"
	"time"

	sharedconfig "github.com/md-rashed-zaman/playhub/libs/config"
	"github.com/md-rashed-zaman/playhub/libs/events"
	otelx "github.com/md-rashed-zaman/playhub/libs/otel"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"

	LockLocal    = "local"
	LockRedis    = "redis"
	LockAdvisory = "advisory"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"relay-service"`
	Port        string `env:"PORT" envDefault:"8090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Backend          string `env:"OUTBOX_BACKEND" envDefault:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	MongoURI         string `env:"MONGO_URI"`
	MongoDatabase    string `env:"MONGO_DATABASE" envDefault:"playhub"`
	OutboxCollection string `env:"OUTBOX_COLLECTION" envDefault:"outbox"`

	KafkaBrokers     string `env:"KAFKA_BROKERS"`
	TransactionalID  string `env:"KAFKA_TRANSACTIONAL_ID" envDefault:"playhub-outbox-relay"`
	VerifyPartitions bool   `env:"KAFKA_VERIFY_PARTITIONS" envDefault:"true"`

	Interval              time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	PageSize              int           `env:"RELAY_PAGE_SIZE" envDefault:"500"`
	SendTimeout           time.Duration `env:"RELAY_SEND_TIMEOUT" envDefault:"5s"`
	CommitTimeout         time.Duration `env:"RELAY_COMMIT_TIMEOUT" envDefault:"10s"`
	ShutdownGrace         time.Duration `env:"RELAY_SHUTDOWN_GRACE" envDefault:"10s"`
	CommitRetryMaxElapsed time.Duration `env:"COMMIT_RETRY_MAX_ELAPSED" envDefault:"30s"`

	Lock          string        `env:"RELAY_LOCK" envDefault:"local"`
	LockName      string        `env:"RELAY_LOCK_NAME" envDefault:"playhub:outbox-relay"`
	LockTTL       time.Duration `env:"RELAY_LOCK_TTL" envDefault:"30s"`
	AdvisoryKey   int64         `env:"RELAY_ADVISORY_LOCK_KEY" envDefault:"7341001"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	Streams events.Streams
	Otel    otelx.Config
}

func Load() (Config, error) {
	cfg, err := sharedconfig.Load[Config]()
	if err != nil {
		return cfg, err
	}
	cfg.Streams = cfg.Streams.WithDefaults()
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var errs []error
	var err error
	if c.Port, err = sharedconfig.Port("PORT", c.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Backend, err = sharedconfig.OneOf("OUTBOX_BACKEND", c.Backend, BackendPostgres, BackendMongo); err != nil {
		errs = append(errs, err)
	}
	if c.Lock, err = sharedconfig.OneOf("RELAY_LOCK", c.Lock, LockLocal, LockRedis, LockAdvisory); err != nil {
		errs = append(errs, err)
	}

	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	}
	switch c.Lock {
	case LockRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RELAY_LOCK=redis"))
		}
	case LockAdvisory:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when RELAY_LOCK=advisory"))
		}
	}

	if len(c.Brokers()) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_PAGE_SIZE must be positive (got %d)", c.PageSize))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_INTERVAL must be positive (got %s)", c.Interval))
	}
	if err := c.Streams.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) Brokers() []string {
	return sharedconfig.SplitList(c.KafkaBrokers)
}
