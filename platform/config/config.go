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

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// HubSpotConfig provides settings for the HubSpot CRM client.
type HubSpotConfig interface {
	GetHubSpotBaseURL() string
	GetHubSpotToken() string
	IsHubSpotEnabled() bool
}

// ZuperConfig provides settings for the Zuper field-service client.
type ZuperConfig interface {
	GetZuperBaseURL() string
	GetZuperAPIKey() string
	IsZuperEnabled() bool
}

// CalendarConfig provides settings for the survey calendar webhook.
type CalendarConfig interface {
	GetCalendarWebhookURL() string
	IsCalendarEnabled() bool
}

// WorkerConfig provides settings for the asynq reminder pipeline.
type WorkerConfig interface {
	GetRedisURL() string
	GetReminderQueue() string
	GetWorkerConcurrency() int
	GetReminderLead() time.Duration
	IsReminderEnabled() bool
}

// SchedulingFileConfig locates the category/property mapping file.
type SchedulingFileConfig interface {
	GetSchedulingConfigPath() string
}

// NotificationConfig provides settings for outbound notification content.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	AppBaseURL           string
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	HubSpotBaseURL       string
	HubSpotToken         string
	ZuperBaseURL         string
	ZuperAPIKey          string
	CalendarWebhookURL   string
	RedisURL             string
	ReminderQueue        string
	WorkerConcurrency    int
	ReminderLead         time.Duration
	SchedulingConfigPath string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// HubSpotConfig implementation
func (c *Config) GetHubSpotBaseURL() string { return c.HubSpotBaseURL }
func (c *Config) GetHubSpotToken() string   { return c.HubSpotToken }
func (c *Config) IsHubSpotEnabled() bool    { return c.HubSpotToken != "" }

// ZuperConfig implementation
func (c *Config) GetZuperBaseURL() string { return c.ZuperBaseURL }
func (c *Config) GetZuperAPIKey() string  { return c.ZuperAPIKey }
func (c *Config) IsZuperEnabled() bool {
	return c.ZuperBaseURL != "" && c.ZuperAPIKey != ""
}

// CalendarConfig implementation
func (c *Config) GetCalendarWebhookURL() string { return c.CalendarWebhookURL }
func (c *Config) IsCalendarEnabled() bool       { return c.CalendarWebhookURL != "" }

// WorkerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetReminderQueue() string       { return c.ReminderQueue }
func (c *Config) GetWorkerConcurrency() int      { return c.WorkerConcurrency }
func (c *Config) GetReminderLead() time.Duration { return c.ReminderLead }
func (c *Config) IsReminderEnabled() bool        { return c.RedisURL != "" }

// SchedulingFileConfig implementation
func (c *Config) GetSchedulingConfigPath() string { return c.SchedulingConfigPath }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:4200"),
		EmailEnabled:         emailEnabled && smtpHost != "",
		SMTPHost:             smtpHost,
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Field Operations"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		HubSpotBaseURL:       getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
		HubSpotToken:         getEnv("HUBSPOT_TOKEN", ""),
		ZuperBaseURL:         getEnv("ZUPER_BASE_URL", ""),
		ZuperAPIKey:          getEnv("ZUPER_API_KEY", ""),
		CalendarWebhookURL:   getEnv("CALENDAR_WEBHOOK_URL", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		ReminderQueue:        getEnv("REMINDER_QUEUE", "reminders"),
		WorkerConcurrency:    mustInt(getEnv("WORKER_CONCURRENCY", "5")),
		ReminderLead:         mustDuration(getEnv("REMINDER_LEAD", "24h")),
		SchedulingConfigPath: getEnv("SCHEDULING_CONFIG", "config/scheduling.yaml"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
