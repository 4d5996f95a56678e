package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// StrictTransitions rejects status jumps outside the happy-path graph.
	// Off by default: staff use free transitions to correct mistakes.
	StrictTransitions bool

	DB        DBConfig
	Stripe    StripeConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// StripeConfig holds the card-payment provider settings. An empty
// WebhookSecret disables signature checking (local/dev fallback).
type StripeConfig struct {
	APIBaseURL    string
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// KafkaConfig holds the event-export settings. No brokers means the export
// is disabled and events only reach the in-process SSE hub.
type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// Enabled reports whether the Kafka export should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RateLimitConfig holds the per-IP limiter settings for the public API.
type RateLimitConfig struct {
	IPMaxTokens       float64
	IPRefillRate      float64
	TrustForwardedFor bool
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)

	if !exists {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)

	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)

	if !exists {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(value, 64)

	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitList(value string) []string {
	var out []string

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))

	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))

	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	return &Config{
		Port:              port,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Env:               getEnv("APP_ENV", "development"),
		StrictTransitions: getEnvBool("STRICT_TRANSITIONS", false),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "afrofood"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Stripe: StripeConfig{
			APIBaseURL:    getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com/v1"),
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("ORDER_CURRENCY", "eur"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "afrofood.orders.events"),
		},
		RateLimit: RateLimitConfig{
			IPMaxTokens:       getEnvFloat("RATE_LIMIT_IP_MAX_TOKENS", 20),
			IPRefillRate:      getEnvFloat("RATE_LIMIT_IP_REFILL_RATE", 5),
			TrustForwardedFor: getEnvBool("RATE_LIMIT_TRUST_FORWARDED_FOR", false),
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
