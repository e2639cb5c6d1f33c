package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        int
	Database    DatabaseConfig
	JWTSecret   string
	Environment string
	CORSOrigins []string
	LogDir      string

	// Engine tuning
	MaxConcurrentProbes int
	SchedulerTick       time.Duration
	ProbeTimeout        time.Duration
	SlowThresholdMs     int64
	OfflineThreshold    int
	SSLWarningWindow    time.Duration

	AllowPrivateIPs bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "production")

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Environment: env,
		CORSOrigins: loadCORSOrigins(),
		LogDir:      getEnv("LOG_DIR", "./logs"),

		MaxConcurrentProbes: getEnvInt("MAX_CONCURRENT_PROBES", 50),
		SchedulerTick:       getEnvDuration("SCHEDULER_TICK", time.Second),
		ProbeTimeout:        getEnvDuration("PROBE_TIMEOUT", 10*time.Second),
		SlowThresholdMs:     int64(getEnvInt("SLOW_THRESHOLD_MS", 3000)),
		OfflineThreshold:    getEnvInt("OFFLINE_THRESHOLD", 2),
		SSLWarningWindow:    getEnvDuration("SSL_WARNING_WINDOW", 7*24*time.Hour),

		AllowPrivateIPs: getEnvBool("ALLOW_PRIVATE_IPS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "siteguard")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "siteguard")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.MaxConcurrentProbes < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PROBES must be at least 1")
	}

	if c.OfflineThreshold < 1 {
		return fmt.Errorf("OFFLINE_THRESHOLD must be at least 1")
	}

	if c.SchedulerTick <= 0 {
		return fmt.Errorf("SCHEDULER_TICK must be positive")
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("PROBE_TIMEOUT must be positive")
	}

	return nil
}

func loadCORSOrigins() []string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return splitAndTrim(origins, ",")
	}

	if appURL := getAppURL(); appURL != "" {
		return []string{appURL}
	}

	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
