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
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string

	// Watch-time tracking
	WatchTimezone        string
	TamperGrace          time.Duration
	TamperRateMultiplier float64
	TamperRateSlack      time.Duration

	// Stale session sweep (off unless explicitly enabled)
	SessionSweepEnabled  bool
	SessionSweepInterval time.Duration
	SessionStaleAfter    time.Duration

	// Video metadata
	MetadataCacheTTL time.Duration
	WorkerCount      int

	// Rate limiting (requests per minute per IP)
	RateLimitPerMinute     int
	AuthRateLimitPerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "json"),

		WatchTimezone:        getEnvOrDefault("WATCH_TIMEZONE", "UTC"),
		TamperGrace:          time.Duration(getEnvAsIntOrDefault("TAMPER_GRACE_SECONDS", 5)) * time.Second,
		TamperRateMultiplier: getEnvAsFloatOrDefault("TAMPER_RATE_MULTIPLIER", 1.1),
		TamperRateSlack:      time.Duration(getEnvAsIntOrDefault("TAMPER_RATE_SLACK_SECONDS", 2)) * time.Second,

		SessionSweepEnabled:  getEnvAsBoolOrDefault("SESSION_SWEEP_ENABLED", false),
		SessionSweepInterval: getEnvAsDurationOrDefault("SESSION_SWEEP_INTERVAL", time.Minute),
		SessionStaleAfter:    getEnvAsDurationOrDefault("SESSION_STALE_AFTER", 10*time.Minute),

		MetadataCacheTTL: getEnvAsDurationOrDefault("METADATA_CACHE_TTL", 24*time.Hour),
		WorkerCount:      getEnvAsIntOrDefault("WORKER_COUNT", 3),

		RateLimitPerMinute:     getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		AuthRateLimitPerMinute: getEnvAsIntOrDefault("AUTH_RATE_LIMIT_PER_MINUTE", 10),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Location resolves WatchTimezone, falling back to UTC for unknown zone names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.WatchTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
