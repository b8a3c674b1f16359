package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DB     DBConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Jobs   JobsConfig
	Env    string
	Logger string
}

type DBConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	TTL         time.Duration
	Compression string
}

// Enabled reports whether segments are cached in redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

// Enabled reports whether coding events are published to kafka.
func (k KafkaConfig) Enabled() bool {
	return k.Brokers != ""
}

type JobsConfig struct {
	OrphanSweepSchedule string
	SessionIdleTTL      time.Duration
}

// LoadConfig reads the configuration from the environment. A .env file in
// the working directory is loaded first.
func LoadConfig() *Config {
	return &Config{
		Env:    getenv("ENV", "dev"),
		Logger: getenv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver: getenv("DB_DRIVER", "sqlite"),
			URL:    getenv("DATABASE_URL", "qda.db"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", ""),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          getenvInt("REDIS_DB", 0),
			TTL:         time.Duration(getenvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
			Compression: getenv("CACHE_COMPRESSION", "lz4"),
		},
		Kafka: KafkaConfig{
			Brokers: getenv("KAFKA_BROKERS", ""),
			Topic:   getenv("KAFKA_TOPIC", "qda.coding.events"),
		},
		Jobs: JobsConfig{
			OrphanSweepSchedule: getenv("ORPHAN_SWEEP_SCHEDULE", "@every 10m"),
			SessionIdleTTL:      time.Duration(getenvInt("SESSION_IDLE_TTL_SECONDS", 1800)) * time.Second,
		},
	}
}

func (c *Config) IsTest() bool {
	return c.Env == "test"
}

// SetupLogger applies the configured log level.
func (c *Config) SetupLogger() {
	level, err := logrus.ParseLevel(c.Logger)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", c.Logger)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// GetDb opens the configured database. Errors of the driver are translated
// to gorm errors so the store can map them.
func GetDb(cfg *Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.DB.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DB.URL)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DB.URL)
	default:
		logrus.Errorf("unsupported database driver %q", cfg.DB.Driver)
		return nil, ErrUnsupportedDriver
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	logrus.Debugf("connected to %s database", cfg.DB.Driver)

	return db, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("ignoring %s=%q: %v", key, value, err)
		return fallback
	}
	return parsed
}
