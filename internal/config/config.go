package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"newshub/app"
	"newshub/internal/helper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"

	DefaultFeedURL = "https://newsdata.io/api/1/latest"
	MaxWorkers     = app.MaxWorkers
)

type Config struct {
	StoreDriver string `yaml:"store_driver"`

	PGHost     string `yaml:"postgres_host"`
	PGPort     int    `yaml:"postgres_port"`
	PGUser     string `yaml:"postgres_user"`
	PGPassword string `yaml:"postgres_password"`
	PGDatabase string `yaml:"postgres_dbname"`

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	SQLitePath string `yaml:"sqlite_path"`

	FeedURL      string        `yaml:"feed_url"`
	FeedAPIKey   string        `yaml:"feed_api_key"`
	FeedLanguage string        `yaml:"feed_language"`
	FeedTimeout  time.Duration `yaml:"feed_timeout"`

	FetchSchedule string `yaml:"fetch_schedule"`
	IngestWorkers int    `yaml:"ingest_workers"`

	Port        int    `yaml:"port"`
	ControlAddr string `yaml:"control_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		StoreDriver:   DriverPostgres,
		PGHost:        "localhost",
		PGPort:        5432,
		PGUser:        "postgres",
		PGPassword:    "changeme",
		PGDatabase:    "newshub",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "newshub",
		SQLitePath:    "./newshub.db",
		FeedURL:       DefaultFeedURL,
		FeedLanguage:  "en",
		FeedTimeout:   30 * time.Second,
		FetchSchedule: "0 */6 * * *",
		IngestWorkers: 3,
		Port:          5000,
		ControlAddr:   "127.0.0.1:8088",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file named by
// NEWSHUB_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("NEWSHUB_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.StoreDriver = strings.ToLower(getenv("STORE_DRIVER", cfg.StoreDriver))
	cfg.PGHost = getenv("POSTGRES_HOST", cfg.PGHost)
	cfg.PGPort = parseIntEnv("POSTGRES_PORT", cfg.PGPort)
	cfg.PGUser = getenv("POSTGRES_USER", cfg.PGUser)
	cfg.PGPassword = getenv("POSTGRES_PASSWORD", cfg.PGPassword)
	cfg.PGDatabase = getenv("POSTGRES_DBNAME", cfg.PGDatabase)
	cfg.MongoURI = getenv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getenv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.SQLitePath = getenv("SQLITE_PATH", cfg.SQLitePath)
	cfg.FeedURL = getenv("FEED_URL", cfg.FeedURL)
	cfg.FeedAPIKey = getenv("FEED_API_KEY", cfg.FeedAPIKey)
	cfg.FeedLanguage = getenv("FEED_LANGUAGE", cfg.FeedLanguage)
	cfg.FeedTimeout = parseDurationEnv("FEED_TIMEOUT", cfg.FeedTimeout)
	cfg.FetchSchedule = getenv("FETCH_SCHEDULE", cfg.FetchSchedule)
	cfg.IngestWorkers = parseIntEnv("INGEST_WORKERS", cfg.IngestWorkers)
	cfg.Port = parseIntEnv("PORT", cfg.Port)
	cfg.ControlAddr = getenv("CONTROL_ADDR", cfg.ControlAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
}

// Validate checks values that would otherwise fail late at runtime. The feed
// API key is not required here so read-only commands work without it.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q (want %s, %s or %s)", c.StoreDriver, DriverPostgres, DriverMongo, DriverSQLite)
	}
	if err := helper.ValidateURL(c.FeedURL); err != nil {
		return err
	}
	if c.IngestWorkers <= 0 || c.IngestWorkers > MaxWorkers {
		return fmt.Errorf("ingest workers should be between 1 and %d, got %d", MaxWorkers, c.IngestWorkers)
	}
	if _, err := cron.ParseStandard(c.FetchSchedule); err != nil {
		return fmt.Errorf("invalid fetch schedule %q: %w", c.FetchSchedule, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// PostgresURL is the lib/pq connection string.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase,
	)
}

func (c Config) ListenAddr() string { return ":" + strconv.Itoa(c.Port) }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
