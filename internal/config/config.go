package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nfaportal/internal/database"
)

// Config is the portal's runtime configuration.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	Environment string

	UpstreamBaseURL    string
	UpstreamTimeout    time.Duration
	RevalidateInterval time.Duration
	RevalidateDelay    time.Duration

	SessionSecret string
	SecureCookies bool
	CORSOrigins   []string
	CatalogFile   string

	Database database.Config
}

// Load reads configs/.env when present and then the process environment.
// It reports whether the env file was found.
func Load(envFile string) (Config, bool, error) {
	found := godotenv.Load(envFile) == nil

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("APP_ENV", "development"),

		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:8000"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		CatalogFile:   os.Getenv("CATALOG_FILE"),

		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	var err error
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return cfg, found, err
	}
	if cfg.RevalidateInterval, err = getDuration("REVALIDATE_INTERVAL", 2*time.Minute); err != nil {
		return cfg, found, err
	}
	if cfg.RevalidateDelay, err = getDuration("REVALIDATE_DELAY", time.Second); err != nil {
		return cfg, found, err
	}
	if cfg.SecureCookies, err = getBool("SECURE_COOKIES", false); err != nil {
		return cfg, found, err
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return cfg, found, fmt.Errorf("SESSION_SECRET is required in production")
		}
		cfg.SessionSecret = "dev-session-secret"
	}

	return cfg, found, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
