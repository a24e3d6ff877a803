// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	HTTPAddr    string `env:"GACHA_HTTP_ADDR" envDefault:":8080" validate:"required"`
	LogLevel    string `env:"GACHA_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	LogFormat   string `env:"GACHA_LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	Environment string `env:"GACHA_ENV" envDefault:"dev" validate:"oneof=dev staging prod test"`

	// Storage: DatabaseURL wins over SQLitePath; both empty keeps state in memory.
	DatabaseURL   string        `env:"GACHA_DATABASE_URL"`
	SQLitePath    string        `env:"GACHA_SQLITE_PATH"`
	DBMaxConns    int           `env:"GACHA_DB_MAX_CONNS" envDefault:"10" validate:"gte=1"`
	DBMaxIdleTime time.Duration `env:"GACHA_DB_MAX_IDLE" envDefault:"5m"`
	DBMaxLifetime time.Duration `env:"GACHA_DB_MAX_LIFETIME" envDefault:"1h"`
	ConfigDir     string        `env:"GACHA_CONFIG_DIR"`
	WatchInterval time.Duration `env:"GACHA_WATCH_INTERVAL" envDefault:"0s" validate:"gte=0"`
	SchemaVersion uint64        `env:"GACHA_SCHEMA_VERSION" envDefault:"1" validate:"gte=1"`
	TokenSecret   string        `env:"GACHA_TOKEN_SECRET,required" validate:"min=16"`
	// BootstrapTokenFile receives the first admin token; empty prints it to stderr.
	BootstrapTokenFile string        `env:"GACHA_BOOTSTRAP_TOKEN_FILE"`
	TokenTTL           time.Duration `env:"GACHA_TOKEN_TTL" envDefault:"0s" validate:"gte=0"`
	ReceiptCache       int           `env:"GACHA_RECEIPT_CACHE_SIZE" envDefault:"10000" validate:"gte=1"`
	ReceiptTTL         time.Duration `env:"GACHA_RECEIPT_TTL" envDefault:"10m" validate:"gt=0"`
	CORSOrigins        []string      `env:"GACHA_CORS_ORIGINS" envSeparator:","`
	MaxBodyBytes       int64         `env:"GACHA_MAX_BODY_BYTES" envDefault:"1048576" validate:"gte=1024"`
	ShutdownPeriod     time.Duration `env:"GACHA_SHUTDOWN_TIMEOUT" envDefault:"15s" validate:"gt=0"`

	CostName       string `env:"GACHA_COST_NAME" envDefault:"Star Stone"`
	CostPerDraw    uint64 `env:"GACHA_COST_PER_DRAW" envDefault:"0"`
	CostPerTenDraw uint64 `env:"GACHA_COST_PER_TEN_DRAW" envDefault:"0"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports offending variables by name.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", envName(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// envName maps a struct field back to its variable for error messages.
func envName(field string) string {
	f, ok := reflect.TypeOf(Config{}).FieldByName(field)
	if !ok {
		return field
	}
	key, _, _ := strings.Cut(f.Tag.Get("env"), ",")
	return key
}
