package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduler     SchedulerConfig
	Reconciler    ReconcilerConfig
	Extensions    ExtensionsConfig
	StatusCache   StatusCacheConfig
	Notifications NotificationsConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig drives the automatic period toggler.
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	Concurrency   int
	PeriodTimeout time.Duration
}

// ReconcilerConfig drives the calendar mirror pass.
type ReconcilerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ExtensionsConfig holds workflow validation limits.
type ExtensionsConfig struct {
	MinJustification    int
	MinRejectionComment int
}

// StatusCacheConfig governs caching of dashboard deadline statuses.
type StatusCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// NotificationsConfig sizes the event delivery queue.
type NotificationsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:       v.GetBool("ENABLE_PERIOD_SCHEDULER"),
		Interval:      parseDuration(v.GetString("PERIOD_SCHEDULER_INTERVAL"), time.Minute),
		Concurrency:   positiveOr(v.GetInt("PERIOD_SCHEDULER_CONCURRENCY"), 4),
		PeriodTimeout: parseDuration(v.GetString("PERIOD_SCHEDULER_TIMEOUT"), 10*time.Second),
	}

	cfg.Reconciler = ReconcilerConfig{
		Enabled:  v.GetBool("ENABLE_CALENDAR_RECONCILER"),
		Interval: parseDuration(v.GetString("CALENDAR_RECONCILER_INTERVAL"), 15*time.Minute),
	}

	cfg.Extensions = ExtensionsConfig{
		MinJustification:    positiveOr(v.GetInt("EXTENSION_MIN_JUSTIFICATION"), 10),
		MinRejectionComment: positiveOr(v.GetInt("EXTENSION_MIN_REJECTION_COMMENT"), 10),
	}

	cfg.StatusCache = StatusCacheConfig{
		Enabled: v.GetBool("STATUS_CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("STATUS_CACHE_TTL"), time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    positiveOr(v.GetInt("NOTIFICATION_WORKERS"), 2),
		BufferSize: positiveOr(v.GetInt("NOTIFICATION_BUFFER"), 256),
		MaxRetries: positiveOr(v.GetInt("NOTIFICATION_RETRIES"), 3),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "deadline_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE_ON_START", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_PERIOD_SCHEDULER", true)
	v.SetDefault("PERIOD_SCHEDULER_INTERVAL", "1m")
	v.SetDefault("PERIOD_SCHEDULER_CONCURRENCY", 4)
	v.SetDefault("PERIOD_SCHEDULER_TIMEOUT", "10s")

	v.SetDefault("ENABLE_CALENDAR_RECONCILER", true)
	v.SetDefault("CALENDAR_RECONCILER_INTERVAL", "15m")

	v.SetDefault("EXTENSION_MIN_JUSTIFICATION", 10)
	v.SetDefault("EXTENSION_MIN_REJECTION_COMMENT", 10)

	v.SetDefault("STATUS_CACHE_ENABLED", false)
	v.SetDefault("STATUS_CACHE_TTL", "1m")

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_BUFFER", 256)
	v.SetDefault("NOTIFICATION_RETRIES", 3)
}

// Location resolves the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
