// Package settings holds process configuration and the per-game house-edge
// settings read at the start of every round.
package settings

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

const (
	ENV_LOCAL      = "local"
	ENV_PRODUCTION = "production"
)

type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	Database string `env:"DATABASE" envDefault:"instantwin"`
	Username string `env:"USERNAME" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Schema   string `env:"SCHEMA" envDefault:"public"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

type RedisConfig struct {
	URL      string `env:"URL" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Redis RedisConfig `envPrefix:"REDIS_"`
	DB    DBConfig    `envPrefix:"BLUEPRINT_DB_"`

	// NATSURL empty disables settlement publishing.
	NATSURL        string `env:"NATS_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`

	// IntensityFile, when set, takes precedence over the Redis hash.
	IntensityFile    string  `env:"INTENSITY_FILE"`
	DefaultIntensity float64 `env:"DEFAULT_INTENSITY" envDefault:"0"`

	// PaytableFile replaces the built-in slots paytable.
	PaytableFile string `env:"SLOTS_PAYTABLE_FILE"`

	LedgerRetryMax    uint64        `env:"LEDGER_RETRY_MAX" envDefault:"5"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5s"`
	// DemoBalance seeds new wallets in non-production environments.
	DemoBalance string `env:"DEMO_BALANCE" envDefault:"1000.00"`
}

func (c Config) IsProduction() bool {
	return c.AppEnv == ENV_PRODUCTION
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
