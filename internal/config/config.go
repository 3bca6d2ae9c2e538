package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	Addr     string
	DBDSN    string
	LogLevel string

	// RedisAddr enables Redis-backed request throttling when set.
	RedisAddr string

	TokenSecret string
	TokenTTL    time.Duration

	CodeLength int
	CodeTTL    time.Duration

	LockThreshold int
	LockDuration  time.Duration

	// RevealCodes echoes a one-time code in the API response when delivery
	// fails. Never enabled in prod.
	RevealCodes bool

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPTLSMode   string
	SMTPFromName  string
	SMTPFromEmail string
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV"),
		Addr:        getenv("APP_ADDR"),
		DBDSN:       getenv("APP_DB_DSN"),
		LogLevel:    getenv("APP_LOG_LEVEL"),
		RedisAddr:   getenv("APP_REDIS_ADDR"),
		TokenSecret: getenv("APP_TOKEN_SECRET"),

		SMTPHost:      getenv("SMTP_HOST"),
		SMTPUsername:  getenv("SMTP_USERNAME"),
		SMTPPassword:  getenv("SMTP_PASSWORD"),
		SMTPTLSMode:   getenv("SMTP_TLS_MODE"),
		SMTPFromName:  getenv("SMTP_FROM_NAME"),
		SMTPFromEmail: getenv("SMTP_FROM_EMAIL"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	var err error
	cfg.TokenTTL, err = durationEnv(getenv, "APP_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.CodeTTL, err = durationEnv(getenv, "APP_CODE_TTL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.LockDuration, err = durationEnv(getenv, "APP_LOCK_DURATION", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.CodeLength, err = intEnv(getenv, "APP_CODE_LENGTH", 6)
	if err != nil {
		return Config{}, err
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return Config{}, errors.New("APP_CODE_LENGTH: must be between 4 and 10")
	}
	cfg.LockThreshold, err = intEnv(getenv, "APP_LOCK_THRESHOLD", 5)
	if err != nil {
		return Config{}, err
	}
	if cfg.LockThreshold < 1 {
		return Config{}, errors.New("APP_LOCK_THRESHOLD: must be >= 1")
	}
	cfg.SMTPPort, err = intEnv(getenv, "SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}

	switch strings.TrimSpace(strings.ToLower(getenv("APP_REVEAL_CODES"))) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		cfg.RevealCodes = true
	default:
		return Config{}, errors.New("APP_REVEAL_CODES: must be a boolean")
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.TokenSecret) < 32 {
			return Config{}, errors.New("APP_TOKEN_SECRET: must be at least 32 bytes in prod")
		}
		if cfg.RevealCodes {
			return Config{}, errors.New("APP_REVEAL_CODES: not allowed in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// MongoDSN reports whether the configured DSN targets the document store
// rather than Postgres.
func (c Config) MongoDSN() bool {
	return strings.HasPrefix(c.DBDSN, "mongodb://") || strings.HasPrefix(c.DBDSN, "mongodb+srv://")
}

func (c Config) SMTPConfigured() bool { return c.SMTPHost != "" && c.SMTPFromEmail != "" }

func durationEnv(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func intEnv(getenv func(string) string, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
