// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// WorkflowConfig provides settings for the workflow engine.
type WorkflowConfig interface {
	// GetPortalLinkTTL is the fixed validity window of a client portal link.
	GetPortalLinkTTL() time.Duration
	// GetDefaultCurrency is the currency used for provisioned payment transactions.
	GetDefaultCurrency() string
	// GetInsightThresholdsPath points to an optional YAML file overriding the
	// built-in insight thresholds. Empty means use catalog defaults.
	GetInsightThresholdsPath() string
	// GetIdleThreshold is the age after which a non-terminal record counts as idle.
	GetIdleThreshold() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	AppBaseURL            string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	PortalLinkTTL         time.Duration
	DefaultCurrency       string
	InsightThresholdsPath string
	IdleThreshold         time.Duration
}

// Load reads configuration from the environment, with a .env file as fallback
// for local development. Missing required values are an error at startup.
func Load() (*Config, error) {
	// Ignore error: .env is optional outside development
	_ = godotenv.Load()

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTAccessSecret:       os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:          getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:           splitCSV(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds:        getBool("CORS_ALLOW_CREDENTIALS", true),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		RedisURL:              os.Getenv("REDIS_URL"),
		RedisTLSInsecure:      getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      getInt("ASYNQ_CONCURRENCY", 10),
		EmailEnabled:          getBool("EMAIL_ENABLED", false),
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              getInt("SMTP_PORT", 587),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Brokerage Portal"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", "noreply@localhost"),
		PortalLinkTTL:         getDuration("PORTAL_LINK_TTL", 72*time.Hour),
		DefaultCurrency:       getEnv("DEFAULT_CURRENCY", "EUR"),
		InsightThresholdsPath: os.Getenv("INSIGHT_THRESHOLDS_FILE"),
		IdleThreshold:         getDuration("IDLE_THRESHOLD", 72*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	return cfg, nil
}

// Interface implementations

func (c *Config) GetDatabaseURL() string             { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string         { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string                { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool              { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string           { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool            { return c.CORSAllowCreds }
func (c *Config) GetAppBaseURL() string              { return c.AppBaseURL }
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetEmailEnabled() bool              { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string                { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                   { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string            { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string            { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string           { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string        { return c.EmailFromAddress }
func (c *Config) GetPortalLinkTTL() time.Duration    { return c.PortalLinkTTL }
func (c *Config) GetDefaultCurrency() string         { return c.DefaultCurrency }
func (c *Config) GetInsightThresholdsPath() string   { return c.InsightThresholdsPath }
func (c *Config) GetIdleThreshold() time.Duration    { return c.IdleThreshold }

// Helpers

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
