package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	RedisAddr          string
	Environment        string
	LogLevel           string
	RunMigrations      bool
	MigrationsDir      string
	RunSeed            bool
	SeedCompanyID      string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool

	CoherenceTolerance         float64
	CoherenceMediumThreshold   float64
	CoherenceHighThreshold     float64
	CoherenceCriticalThreshold float64
	CoherenceAuditInterval     time.Duration

	ResolverCacheTTL    time.Duration
	ResolverFallbackIDs []string

	AlertEmailEnabled bool
	AlertEmailFrom    string
	AlertEmailTo      string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPUseTLS        bool
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RunSeed:            getEnvBool("RUN_SEED", false),
		SeedCompanyID:      getEnv("SEED_COMPANY_ID", "demo"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 5<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),

		CoherenceTolerance:         getEnvFloat("COHERENCE_TOLERANCE", 1),
		CoherenceMediumThreshold:   getEnvFloat("COHERENCE_MEDIUM_THRESHOLD", 1_000),
		CoherenceHighThreshold:     getEnvFloat("COHERENCE_HIGH_THRESHOLD", 10_000),
		CoherenceCriticalThreshold: getEnvFloat("COHERENCE_CRITICAL_THRESHOLD", 50_000),
		CoherenceAuditInterval:     getEnvDuration("COHERENCE_AUDIT_INTERVAL", 6*time.Hour),

		ResolverCacheTTL:    getEnvDuration("RESOLVER_CACHE_TTL", time.Hour),
		ResolverFallbackIDs: getEnvList("RESOLVER_FALLBACK_COMPANY_IDS"),

		AlertEmailEnabled: getEnvBool("ALERT_EMAIL_ENABLED", false),
		AlertEmailFrom:    getEnv("ALERT_EMAIL_FROM", "alertas@contapyme.local"),
		AlertEmailTo:      getEnv("ALERT_EMAIL_TO", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUser:          getEnv("SMTP_USER", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:        getEnvBool("SMTP_USE_TLS", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.CoherenceTolerance <= 0 {
		return fmt.Errorf("COHERENCE_TOLERANCE must be positive")
	}
	if !(c.CoherenceTolerance < c.CoherenceMediumThreshold &&
		c.CoherenceMediumThreshold < c.CoherenceHighThreshold &&
		c.CoherenceHighThreshold < c.CoherenceCriticalThreshold) {
		return fmt.Errorf("coherence thresholds must increase: tolerance < medium < high < critical")
	}
	if c.CoherenceAuditInterval < 0 {
		return fmt.Errorf("COHERENCE_AUDIT_INTERVAL must not be negative")
	}
	if c.RunSeed && strings.TrimSpace(c.SeedCompanyID) == "" {
		return fmt.Errorf("SEED_COMPANY_ID is required when RUN_SEED is set")
	}
	if c.AlertEmailEnabled && (strings.TrimSpace(c.SMTPHost) == "" || strings.TrimSpace(c.AlertEmailTo) == "") {
		return fmt.Errorf("SMTP_HOST and ALERT_EMAIL_TO are required when ALERT_EMAIL_ENABLED is set")
	}
	if c.Environment == "production" && strings.TrimSpace(c.RedisAddr) == "" && len(c.ResolverFallbackIDs) > 0 {
		return fmt.Errorf("REDIS_ADDR must be set in production when resolver fallbacks are configured")
	}
	return nil
}
