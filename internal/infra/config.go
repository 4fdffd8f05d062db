package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	JWTExpiry      time.Duration
	GoogleClientID string
	GoogleIssuer   string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	NorwoodChartPath string

	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string

	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePremiumPriceID string
	FrontendURL          string

	AllowedOrigins []string

	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	MaxImageSizeMB    int
	WorkerConcurrency int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      time.Minute * time.Duration(getEnvInt("JWT_EXPIRE_MINUTES", 60*24*7)),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:   getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		NorwoodChartPath: os.Getenv("NORWOOD_CHART_PATH"),

		StoragePath: getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePremiumPriceID: os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),

		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxImageSizeMB:    getEnvInt("MAX_IMAGE_SIZE_MB", 10),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
	}

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", cfg.Port))

	origins := getEnv("ALLOWED_ORIGINS", cfg.FrontendURL)
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// MaxImageSizeBytes converts the configured megabyte limit.
func (c *Config) MaxImageSizeBytes() int64 {
	return int64(c.MaxImageSizeMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
