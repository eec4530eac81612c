package app

import (
	"os"
	"strconv"
	"time"

	"github.com/coursearc/authcore/pkg/cryptox"
)

type Config struct {
	Issuer string // issuer claim for access tokens

	AccessTokenTTL     time.Duration // access token lifetime (default: 15m)
	RefreshTokenTTL    time.Duration // refresh token lifetime (default: 30 days)
	RefreshTokenLength int           // refresh token entropy in bytes (default: 32)
	TotpSecretLength   int           // TOTP secret length in bytes (default: 20)

	DatabaseFile   string // path to SQLite database file (default: ./auth.db)
	RedisAddr      string // revocation cache address (default: localhost:6379)
	PepperFile     string // pepper for password hashing (default: ./pepper)
	SigningKeyFile string // Ed25519 seed for access token signing (default: ./signing.key)

	Env       string // environment (dev, staging, prod) (default: dev)
	LogLevel  string // log level (debug, info, warn, error) (default: info)
	LogFormat string // log format (json, text) (default: json)

	ShutdownGracePeriod  time.Duration // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // expired-session sweep interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer: getEnvOrDefault("AUTH_ISSUER", "authcore"),

		AccessTokenTTL:     getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshTokenLength: getEnvIntOrDefault("AUTH_REFRESH_TOKEN_LENGTH", cryptox.TokenSize256),
		TotpSecretLength:   getEnvIntOrDefault("AUTH_TOTP_SECRET_LENGTH", 20),

		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisAddr:      getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		SigningKeyFile: getEnvOrDefault("AUTH_SIGNING_KEY_FILE", "signing.key"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are read as minutes for backwards compatibility
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
