// README: Config loader with env defaults for HTTP, DB, Redis, Firebase, logging and pricing settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "DROPFEE"

type HTTPConfig struct {
	Addr        string   `envconfig:"DROPFEE_HTTP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"DROPFEE_CORS_ORIGINS" default:"*"`
}

type DBConfig struct {
	DSN         string `envconfig:"DROPFEE_DB_DSN" required:"true"`
	AutoMigrate bool   `envconfig:"DROPFEE_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"DROPFEE_REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"DROPFEE_REDIS_PASSWORD"`
	DB       int           `envconfig:"DROPFEE_REDIS_DB" default:"0"`
	CartTTL  time.Duration `envconfig:"DROPFEE_CART_TTL" default:"72h"`
}

type FirebaseConfig struct {
	ProjectID       string `envconfig:"DROPFEE_FIREBASE_PROJECT_ID" required:"true"`
	CredentialsFile string `envconfig:"DROPFEE_FIREBASE_CREDENTIALS_FILE"`
}

type LogConfig struct {
	Level  string `envconfig:"DROPFEE_LOG_LEVEL" default:"info"`
	Format string `envconfig:"DROPFEE_LOG_FORMAT" default:"json"`
}

type PricingConfig struct {
	Timezone        string        `envconfig:"DROPFEE_PRICING_TIMEZONE" default:"UTC"`
	RefreshInterval time.Duration `envconfig:"DROPFEE_SNAPSHOT_REFRESH_INTERVAL" default:"30s"`
}

// Location resolves the default timezone used for peak-hour windows.
func (p PricingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil {
		return nil, fmt.Errorf("loading pricing timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

type Config struct {
	HTTP     HTTPConfig
	DB       DBConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Log      LogConfig
	Pricing  PricingConfig
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return Config{}, fmt.Errorf("%s_DB_DSN is required", EnvPrefix)
	}
	if _, err := cfg.Pricing.Location(); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.RefreshInterval <= 0 {
		return Config{}, fmt.Errorf("%s_SNAPSHOT_REFRESH_INTERVAL must be positive", EnvPrefix)
	}
	return cfg, nil
}
