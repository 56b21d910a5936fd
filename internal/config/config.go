// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig selects the driver and its connection settings. A non-empty
// DSN wins over the individual postgres fields.
type DatabaseConfig struct {
	Driver   string // postgres | sqlite
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool // golang-migrate SQL files instead of AutoMigrate
	Seed       bool
	LogLevel   slog.Level
}

type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string
}

// BillingConfig tunes the billing rules that are a business decision rather than law.
type BillingConfig struct {
	LegalMention         string
	ImbalanceThreshold   decimal.Decimal // percentage points
	OverbillingTolerance decimal.Decimal // EUR
	ProgressMode         string          // mean | latest
}

// PostgresDSN returns the connection string in key=value format.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:      os.Getenv("DATABASE_DSN"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "chantierpro"),
			Password: getEnv("DB_PASSWORD", "chantierpro"),
			DBName:   getEnv("DB_NAME", "chantierpro"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", true),
			LogLevel:   getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			SessionTTL:    time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*14)) * time.Hour,
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Billing: BillingConfig{
			LegalMention:         os.Getenv("BILLING_LEGAL_MENTION"),
			ImbalanceThreshold:   getEnvDecimal("BILLING_IMBALANCE_THRESHOLD", decimal.NewFromInt(10)),
			OverbillingTolerance: getEnvDecimal("BILLING_OVERBILLING_TOLERANCE", decimal.Zero),
			ProgressMode:         getEnv("BILLING_PROGRESS_MODE", "mean"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool accepts "1", "true", "yes" as true; any other non-empty value is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDecimal accepts "10", "2.5" or "2,5".
func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ".")); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(value)); err == nil {
			return l
		}
	}
	return defaultValue
}
