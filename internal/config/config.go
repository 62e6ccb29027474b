package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"~/.knowpool/knowpool.db"`

	// APIKey guards the HTTP API when set. Several keys may be given comma separated.
	APIKey string `envconfig:"API_KEY"`

	DecayPolicyFile string  `envconfig:"DECAY_POLICY_FILE"`
	StalenessFloor  float64 `envconfig:"STALENESS_FLOOR" default:"0.1"`
	ContextMaxChars int     `envconfig:"CONTEXT_MAX_CHARS" default:"2000"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"knowpool-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	AccumulationPollInterval time.Duration `envconfig:"ACCUMULATION_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KNOWPOOL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("KNOWPOOL_DATABASE_URL is required when the store driver is postgres")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("KNOWPOOL_SQLITE_PATH is required when the store driver is sqlite")
		}
	default:
		return fmt.Errorf("unknown store driver %q (expected postgres or sqlite)", c.StoreDriver)
	}

	if c.StalenessFloor < 0 || c.StalenessFloor > 1 {
		return fmt.Errorf("KNOWPOOL_STALENESS_FLOOR must be within [0,1], got %v", c.StalenessFloor)
	}
	if c.ContextMaxChars <= 0 {
		return fmt.Errorf("KNOWPOOL_CONTEXT_MAX_CHARS must be positive")
	}
	return nil
}

// APIKeys returns the configured bearer tokens.
func (c *Config) APIKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKey, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) UsesSQLite() bool {
	return c.StoreDriver == StoreDriverSQLite
}

// TracesSampleRate samples everything in development and 10% elsewhere.
func (c *Config) TracesSampleRate() float64 {
	if c.Environment == "development" {
		return 1.0
	}
	return 0.1
}
