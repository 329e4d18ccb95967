// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is not set")

type Config struct {
	Port           string
	DatabaseURL    string
	ClerkSecretKey string
	PublicBaseURL  string
	ShareTTL       time.Duration
	AssetTable     string
	AssetsDir      string
	MetricsUser    string
	MetricsPass    string
	PprofSecret    string
	TrustProxy     bool
	LogLevel       log.Level
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "3333"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ClerkSecretKey: os.Getenv("CLERK_SECRET_KEY"),
		AssetTable:     os.Getenv("ASSET_TABLE"),
		AssetsDir:      getenv("ASSETS_DIR", "./assets"),
		MetricsUser:    os.Getenv("METRICS_USER"),
		MetricsPass:    os.Getenv("METRICS_PASS"),
		PprofSecret:    os.Getenv("PPROF_SECRET"),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	cfg.PublicBaseURL = strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port), "/")

	ttl, err := time.ParseDuration(getenv("SHARE_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHARE_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid SHARE_TTL: must be positive, got %s", ttl)
	}
	cfg.ShareTTL = ttl

	if v := os.Getenv("TRUST_PROXY"); v != "" {
		if cfg.TrustProxy, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
		}
	}

	level, err := log.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SetupLogging installs the prefixed text formatter at the given level.
func SetupLogging(level log.Level) {
	log.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(level)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
