package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL    string        `env:"DATABASE_URL,required"`
	JWTSecret      string        `env:"JWT_SECRET,required"`
	JWTExpiry      time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	DecisionSecret string        `env:"DECISION_SECRET,required"`
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string        `env:"APP_ENV" envDefault:"production"`

	CommissionRate     decimal.Decimal `env:"COMMISSION_RATE" envDefault:"0.01"`
	ConfirmationWindow time.Duration   `env:"CONFIRMATION_WINDOW" envDefault:"120s"`
	LockTimeout        time.Duration   `env:"LOCK_TIMEOUT" envDefault:"5s"`

	ReferenceCurrency   string        `env:"REFERENCE_CURRENCY" envDefault:"USDT"`
	RateRefreshInterval time.Duration `env:"RATE_REFRESH_INTERVAL" envDefault:"30s"`
	RateCacheTTL        time.Duration `env:"RATE_CACHE_TTL" envDefault:"60s"`
	RedisURL            string        `env:"REDIS_URL"`

	KafkaBrokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"ledger.notifications"`
	KafkaApprovalTopic     string   `env:"KAFKA_APPROVAL_TOPIC" envDefault:"ledger.approvals"`
	KafkaDecisionTopic     string   `env:"KAFKA_DECISION_TOPIC" envDefault:"ledger.decisions"`
	KafkaGroupID           string   `env:"KAFKA_GROUP_ID" envDefault:"custody-ledger"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: dotenv: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if cfg.CommissionRate.IsNegative() {
		return nil, fmt.Errorf("config.Load: COMMISSION_RATE must not be negative")
	}
	if cfg.ConfirmationWindow <= 0 {
		return nil, fmt.Errorf("config.Load: CONFIRMATION_WINDOW must be positive")
	}
	return &cfg, nil
}
