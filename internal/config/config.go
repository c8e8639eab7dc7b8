// Package config handles application configuration loading from
// environment variables, following the same prefixed-variable convention
// as the rest of the Open Cloud Ops family of services.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values for the content-scheduler control
// plane.
type Config struct {
	// Environment is a free-form deployment label (e.g. "production", "dev").
	Environment string

	// Port is the HTTP port the API server listens on.
	Port string

	// LogLevel controls the verbosity of structured log output.
	LogLevel string

	// DatabaseURL is the PostgreSQL connection string for the durable store.
	DatabaseURL string

	// RedisURL is the Redis connection address backing the KV cache and queues.
	RedisURL string

	// BlackRoadOrg is the code-hosting organization the scraper discovers
	// repositories under.
	BlackRoadOrg string

	// ScrapeIntervalMinutes is the cadence of the incremental scrape cron.
	ScrapeIntervalMinutes int

	// SelfHealEnabled gates whether the self-healer is constructed. When
	// false, no healer runs: a job that exhausts its retries is marked
	// failed, a failed scrape is only redelivered, and no healing task is
	// created or escalated.
	SelfHealEnabled bool

	// MaxRetryAttempts is read from MAX_RETRY_ATTEMPTS and validated, but
	// it is not applied to new jobs: the coordinator's default maxRetries
	// is fixed at 3.
	MaxRetryAttempts int

	// GitHubToken is forwarded to the scraper for authenticated requests.
	GitHubToken string

	// AllowedOrigins defines the CORS allowed origins for the API.
	AllowedOrigins []string
}

// Load reads configuration from environment variables and returns a Config
// populated with sensible local-development defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Environment = getEnvOrDefault("ENVIRONMENT", "development")
	cfg.Port = getEnvOrDefault("SCHEDULER_PORT", "8090")
	cfg.LogLevel = getEnvOrDefault("SCHEDULER_LOG_LEVEL", "info")
	cfg.BlackRoadOrg = getEnvOrDefault("BLACKROAD_ORG", "BlackRoad-OS")
	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")

	intervalStr := getEnvOrDefault("SCRAPE_INTERVAL_MINUTES", "30")
	interval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid SCRAPE_INTERVAL_MINUTES value %q: %w", intervalStr, err)
	}
	cfg.ScrapeIntervalMinutes = interval

	healEnabledStr := getEnvOrDefault("SELF_HEAL_ENABLED", "true")
	healEnabled, err := strconv.ParseBool(healEnabledStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid SELF_HEAL_ENABLED value %q: %w", healEnabledStr, err)
	}
	cfg.SelfHealEnabled = healEnabled

	maxRetryStr := getEnvOrDefault("MAX_RETRY_ATTEMPTS", "3")
	maxRetry, err := strconv.Atoi(maxRetryStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid MAX_RETRY_ATTEMPTS value %q: %w", maxRetryStr, err)
	}
	cfg.MaxRetryAttempts = maxRetry

	// Build the PostgreSQL connection URL from individual components,
	// percent-encoding credentials the way url.URL does it for us.
	pgHost := getEnvOrDefault("POSTGRES_HOST", "localhost")
	pgPort := getEnvOrDefault("POSTGRES_PORT", "5432")
	pgDB := getEnvOrDefault("POSTGRES_DB", "content_scheduler")
	pgUser := getEnvOrDefault("POSTGRES_USER", "scheduler")
	pgPassword := os.Getenv("POSTGRES_PASSWORD")
	pgSSLMode := getEnvOrDefault("POSTGRES_SSLMODE", "disable")

	dsn := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", pgHost, pgPort),
		Path:     pgDB,
		RawQuery: fmt.Sprintf("sslmode=%s", pgSSLMode),
	}
	if pgPassword == "" {
		dsn.User = url.User(pgUser)
	} else {
		dsn.User = url.UserPassword(pgUser, pgPassword)
	}
	cfg.DatabaseURL = dsn.String()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	redisHost := getEnvOrDefault("REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("REDIS_PORT", "6379")
	cfg.RedisURL = fmt.Sprintf("%s:%s", redisHost, redisPort)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.RedisURL = redisURL
	}

	originsStr := getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	cfg.AllowedOrigins = strings.Split(originsStr, ",")
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: SCHEDULER_PORT is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: database URL could not be constructed")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("config: Redis URL could not be constructed")
	}
	if c.ScrapeIntervalMinutes <= 0 {
		return fmt.Errorf("config: SCRAPE_INTERVAL_MINUTES must be positive")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("config: MAX_RETRY_ATTEMPTS must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
