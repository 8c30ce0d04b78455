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

// SchedulerConfig provides settings for the asynq job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CoordinationConfig provides settings for the coordination hub.
type CoordinationConfig interface {
	GetRedisURL() string
	GetChannelMinGap() time.Duration
	GetStaggerInterval() time.Duration
	GetBrokerURL() string
	GetBrokerExchange() string
}

// AIConfig provides settings for the adaptive-text capability.
type AIConfig interface {
	GetAIProvider() string
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetOpenRouterAPIKey() string
	GetOpenRouterBaseURL() string
	GetOpenRouterModel() string
	GetAITimeout() time.Duration
}

// EmailConfig provides settings for outbound email delivery.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// IMAPConfig provides settings for the inbound email reply poller.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPPollInterval() time.Duration
	IsIMAPEnabled() bool
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSRatePerSecond() float64
}

// ChatConfig provides settings for the chat gateway.
type ChatConfig interface {
	GetChatGatewayURL() string
	GetChatGatewayKey() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// BreakerConfig provides per-dependency circuit breaker settings.
type BreakerConfig interface {
	GetBreakerFailureThreshold(dependency string) int
	GetBreakerCooldown(dependency string) time.Duration
}

// HandoverConfig provides settings for handover delivery and status links.
type HandoverConfig interface {
	GetStatusTokenSecret() string
	GetStatusTokenTTL() time.Duration
	GetDeliveryMaxAttempts() int
}

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ChannelMinGap   time.Duration
	StaggerInterval time.Duration
	BrokerURL       string
	BrokerExchange  string

	AIProvider        string
	GeminiAPIKey      string
	GeminiModel       string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	AITimeout         time.Duration

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	IMAPHost         string
	IMAPPort         int
	IMAPUsername     string
	IMAPPassword     string
	IMAPPollInterval time.Duration

	SMSGatewayURL    string
	SMSGatewayKey    string
	SMSRatePerSecond float64

	ChatGatewayURL string
	ChatGatewayKey string

	CORSAllowAll bool
	CORSOrigins  []string

	BreakerFailureThreshold  int
	BreakerCooldown          time.Duration
	BreakerOverrideThreshold map[string]int
	BreakerOverrideCooldown  map[string]time.Duration

	StatusTokenSecret   string
	StatusTokenTTL      time.Duration
	DeliveryMaxAttempts int
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CoordinationConfig implementation
func (c *Config) GetChannelMinGap() time.Duration   { return c.ChannelMinGap }
func (c *Config) GetStaggerInterval() time.Duration { return c.StaggerInterval }
func (c *Config) GetBrokerURL() string              { return c.BrokerURL }
func (c *Config) GetBrokerExchange() string         { return c.BrokerExchange }

// AIConfig implementation
func (c *Config) GetAIProvider() string        { return c.AIProvider }
func (c *Config) GetGeminiAPIKey() string      { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string       { return c.GeminiModel }
func (c *Config) GetOpenRouterAPIKey() string  { return c.OpenRouterAPIKey }
func (c *Config) GetOpenRouterBaseURL() string { return c.OpenRouterBaseURL }
func (c *Config) GetOpenRouterModel() string   { return c.OpenRouterModel }
func (c *Config) GetAITimeout() time.Duration  { return c.AITimeout }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" }

// IMAPConfig implementation
func (c *Config) GetIMAPHost() string                 { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                    { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string             { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string             { return c.IMAPPassword }
func (c *Config) GetIMAPPollInterval() time.Duration  { return c.IMAPPollInterval }
func (c *Config) IsIMAPEnabled() bool                 { return c.IMAPHost != "" }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string     { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string     { return c.SMSGatewayKey }
func (c *Config) GetSMSRatePerSecond() float64 { return c.SMSRatePerSecond }

// ChatConfig implementation
func (c *Config) GetChatGatewayURL() string { return c.ChatGatewayURL }
func (c *Config) GetChatGatewayKey() string { return c.ChatGatewayKey }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// BreakerConfig implementation. Per-dependency overrides win over the
// global defaults.
func (c *Config) GetBreakerFailureThreshold(dependency string) int {
	if v, ok := c.BreakerOverrideThreshold[dependency]; ok {
		return v
	}
	return c.BreakerFailureThreshold
}

func (c *Config) GetBreakerCooldown(dependency string) time.Duration {
	if v, ok := c.BreakerOverrideCooldown[dependency]; ok {
		return v
	}
	return c.BreakerCooldown
}

// HandoverConfig implementation
func (c *Config) GetStatusTokenSecret() string       { return c.StatusTokenSecret }
func (c *Config) GetStatusTokenTTL() time.Duration   { return c.StatusTokenTTL }
func (c *Config) GetDeliveryMaxAttempts() int        { return c.DeliveryMaxAttempts }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "pipeline"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		ChannelMinGap:   mustDuration(getEnv("CHANNEL_MIN_GAP", "30m")),
		StaggerInterval: mustDuration(getEnv("COORDINATION_STAGGER", "60m")),
		BrokerURL:       getEnv("BROKER_URL", ""),
		BrokerExchange:  getEnv("BROKER_EXCHANGE", "lead.coordination"),

		AIProvider:        getEnv("AI_PROVIDER", "openrouter"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		AITimeout:         mustDuration(getEnv("AI_TIMEOUT", "30s")),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Complete Car Loans"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		IMAPHost:         getEnv("IMAP_HOST", ""),
		IMAPPort:         mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername:     getEnv("IMAP_USERNAME", ""),
		IMAPPassword:     getEnv("IMAP_PASSWORD", ""),
		IMAPPollInterval: mustDuration(getEnv("IMAP_POLL_INTERVAL", "1m")),

		SMSGatewayURL:    getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:    getEnv("SMS_GATEWAY_KEY", ""),
		SMSRatePerSecond: mustFloat(getEnv("SMS_RATE_PER_SECOND", "1")),

		ChatGatewayURL: getEnv("CHAT_GATEWAY_URL", ""),
		ChatGatewayKey: getEnv("CHAT_GATEWAY_KEY", ""),

		CORSAllowAll: strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),

		BreakerFailureThreshold:  mustInt(getEnv("BREAKER_FAILURE_THRESHOLD", "5")),
		BreakerCooldown:          mustDuration(getEnv("BREAKER_COOLDOWN", "60s")),
		BreakerOverrideThreshold: parseIntOverrides(getEnv("BREAKER_THRESHOLD_OVERRIDES", "")),
		BreakerOverrideCooldown:  parseDurationOverrides(getEnv("BREAKER_COOLDOWN_OVERRIDES", "")),

		StatusTokenSecret:   getEnv("STATUS_TOKEN_SECRET", ""),
		StatusTokenTTL:      mustDuration(getEnv("STATUS_TOKEN_TTL", "168h")),
		DeliveryMaxAttempts: mustInt(getEnv("DELIVERY_MAX_ATTEMPTS", "5")),
	}

	if containsWildcard(cfg.CORSOrigins) {
		cfg.CORSAllowAll = true
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AsynqConcurrency < 1 {
		cfg.AsynqConcurrency = 10
	}
	if cfg.IsEmailEnabled() && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
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

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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

// parseIntOverrides parses "dep=5,other=3" style per-dependency overrides.
func parseIntOverrides(value string) map[string]int {
	result := make(map[string]int)
	for _, pair := range splitCSV(value) {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			result[strings.TrimSpace(key)] = n
		}
	}
	return result
}

// parseDurationOverrides parses "dep=30s,other=2m" style per-dependency overrides.
func parseDurationOverrides(value string) map[string]time.Duration {
	result := make(map[string]time.Duration)
	for _, pair := range splitCSV(value) {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			result[strings.TrimSpace(key)] = d
		}
	}
	return result
}
