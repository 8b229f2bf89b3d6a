package config

import (
	"fmt"
	"time"
)

type AppConfig struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Monitor  MonitorConfig  `envPrefix:"MONITOR_"`
	SourceDB DatabaseConfig `envPrefix:"SOURCE_DB_"`
	TargetDB DatabaseConfig `envPrefix:"TARGET_DB_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"3000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

type MonitorConfig struct {
	Schedule string `env:"SCHEDULE" envDefault:"*/6 * * * *"`

	// Tables to check on every run. Empty means every base table.
	Tables []string `env:"TABLES" envDefault:"customers,orders,products,customer_orders" envSeparator:","`

	AutoReconcile bool `env:"AUTO_RECONCILE" envDefault:"true"`

	AutoStart bool `env:"AUTO_START" envDefault:"true"`

	CheckTimeout time.Duration `env:"CHECK_TIMEOUT" envDefault:"2m"`
}

// DatabaseConfig is shared by the source and target connections. An empty
// Host leaves the connection unconfigured.
type DatabaseConfig struct {
	Driver         string        `env:"DRIVER" envDefault:"postgres"`
	Host           string        `env:"HOST"`
	Port           string        `env:"PORT"`
	User           string        `env:"USER"`
	Password       string        `env:"PASSWORD"`
	Name           string        `env:"NAME"`
	SSLMode        string        `env:"SSLMODE" envDefault:"disable"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay     time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
	MaxOpenConns   int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns   int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

func (c DatabaseConfig) Configured() bool {
	return c.Host != ""
}

type StoreConfig struct {
	// Backend is one of sql (tracking tables in the source database),
	// sqlite or redis.
	Backend string `env:"BACKEND" envDefault:"sql"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"schema_drift.db"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"schema_drift:"`

	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"50"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"schema-changes"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

const (
	BackendSQL    = "sql"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Validate reports settings that cannot be used to start the service.
func (c *AppConfig) Validate() error {
	if !c.SourceDB.Configured() {
		return fmt.Errorf("SOURCE_DB_HOST is required")
	}
	switch c.Store.Backend {
	case BackendSQL, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.SourceDB.MaxAttempts < 1 {
		return fmt.Errorf("SOURCE_DB_MAX_ATTEMPTS must be at least 1")
	}
	if c.TargetDB.Configured() && c.TargetDB.MaxAttempts < 1 {
		return fmt.Errorf("TARGET_DB_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}
