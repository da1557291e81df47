package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevelopmentJWTSecret signs tokens when APP_ENV=development and no secret is set.
const DevelopmentJWTSecret = "development-only-secret"

type Config struct {
	AppEnv         string
	Port           string
	GRPCPort       string
	GinMode        string
	AllowedOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Sweep    SweepConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr         string
	QueueEnabled bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type SweepConfig struct {
	Enabled    bool
	Cron       string
	MaxAgeDays int
	Lock       string
	LockTTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (current then parent directory), an optional config.yaml and
// the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_NAME", "points")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "60s")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("QUEUE_ENABLED", false)

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_CRON", "0 0 * * *")
	v.SetDefault("SWEEP_MAX_AGE_DAYS", 30)
	v.SetDefault("SWEEP_LOCK", "none")
	v.SetDefault("SWEEP_LOCK_TTL", "10m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		GRPCPort:       v.GetString("GRPC_PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			URL:          v.GetString("DATABASE_URL"),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:         v.GetString("REDIS_URL"),
			QueueEnabled: v.GetBool("QUEUE_ENABLED"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Sweep: SweepConfig{
			Enabled:    v.GetBool("SWEEP_ENABLED"),
			Cron:       v.GetString("SWEEP_CRON"),
			MaxAgeDays: v.GetInt("SWEEP_MAX_AGE_DAYS"),
			Lock:       strings.ToLower(v.GetString("SWEEP_LOCK")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	var err error
	cfg.Database.ConnMaxLifetime, err = time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.Sweep.LockTTL, err = time.ParseDuration(v.GetString("SWEEP_LOCK_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_LOCK_TTL: %w", err)
	}

	switch cfg.Database.Driver {
	case "mysql":
		if cfg.Database.Port == "" {
			cfg.Database.Port = "3306"
		}
	case "postgres":
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	if cfg.Sweep.MaxAgeDays <= 0 {
		return nil, fmt.Errorf("SWEEP_MAX_AGE_DAYS must be positive, got %d", cfg.Sweep.MaxAgeDays)
	}
	if cfg.Sweep.Lock != "none" && cfg.Sweep.Lock != "redis" {
		return nil, fmt.Errorf("unsupported SWEEP_LOCK %q", cfg.Sweep.Lock)
	}
	if cfg.JWT.Secret == "" {
		if cfg.AppEnv != "development" {
			return nil, errors.New("JWT_SECRET is required outside development")
		}
		cfg.JWT.Secret = DevelopmentJWTSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
