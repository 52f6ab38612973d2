package config

import (
	"errors"
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
	Env  string
	Port int

	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Scheduler  SchedulerConfig
	Lock       LockConfig
	Attendance AttendanceConfig
	Notify     NotifyConfig
	Repair     RepairConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig controls the lifecycle evaluation loop.
type SchedulerConfig struct {
	Enabled      bool
	TickInterval time.Duration
}

// LockConfig tunes the registration create mutex.
type LockConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// AttendanceConfig holds the default pass threshold applied when an event
// does not override it.
type AttendanceConfig struct {
	DefaultPassThreshold float64
}

// NotifyConfig names the pub/sub channels for lifecycle messages.
type NotifyConfig struct {
	StatusChannel       string
	RegistrationChannel string
}

// RepairConfig tunes the participation reference repair queue.
type RepairConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:      v.GetBool("ENABLE_SCHEDULER"),
		TickInterval: parseDuration(v.GetString("SCHEDULER_TICK_INTERVAL"), time.Minute),
	}

	cfg.Lock = LockConfig{
		TTL:       parseDuration(v.GetString("REGISTRATION_LOCK_TTL"), 10*time.Second),
		KeyPrefix: v.GetString("REGISTRATION_LOCK_PREFIX"),
	}

	cfg.Attendance = AttendanceConfig{
		DefaultPassThreshold: v.GetFloat64("ATTENDANCE_PASS_THRESHOLD"),
	}

	cfg.Notify = NotifyConfig{
		StatusChannel:       v.GetString("NOTIFY_STATUS_CHANNEL"),
		RegistrationChannel: v.GetString("NOTIFY_REGISTRATION_CHANNEL"),
	}

	cfg.Repair = RepairConfig{
		Workers:    v.GetInt("REPAIR_WORKERS"),
		MaxRetries: v.GetInt("REPAIR_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("REPAIR_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_events")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_TICK_INTERVAL", "1m")

	v.SetDefault("REGISTRATION_LOCK_TTL", "10s")
	v.SetDefault("REGISTRATION_LOCK_PREFIX", "lock:registration")

	v.SetDefault("ATTENDANCE_PASS_THRESHOLD", 75.0)

	v.SetDefault("NOTIFY_STATUS_CHANNEL", "events.status")
	v.SetDefault("NOTIFY_REGISTRATION_CHANNEL", "events.registrations")

	v.SetDefault("REPAIR_WORKERS", 1)
	v.SetDefault("REPAIR_MAX_RETRIES", 3)
	v.SetDefault("REPAIR_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
