package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Port            int
	LogLevel        string
	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	RedisURL        string
	ObjectTTL       time.Duration
	SlackBotToken   string
	SlackChannel    string
	APIToken        string
	CallTimeout     time.Duration
	CallLogSize     int
	StrictDetector  bool
	HistoryLimit    int
}

func Load() Config {
	return Config{
		Port:            envInt("OKRSYNC_PORT", 8760),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LLMProvider:     strings.ToLower(envStr("LLM_PROVIDER", ProviderAnthropic)),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("OKRSYNC_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		GeminiModel:     envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		RedisURL:        envStr("REDIS_URL", ""),
		ObjectTTL:       envDuration("OKRSYNC_OBJECT_TTL", 0),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_CHANNEL", ""),
		APIToken:        envStr("OKRSYNC_API_TOKEN", ""),
		CallTimeout:     envDuration("OKRSYNC_CALL_TIMEOUT", 90*time.Second),
		CallLogSize:     envInt("OKRSYNC_CALL_LOG_SIZE", 200),
		StrictDetector:  envBool("OKRSYNC_STRICT_DETECTOR", false),
		HistoryLimit:    envInt("OKRSYNC_HISTORY_LIMIT", 40),
	}
}

// LLMConfigured reports whether the selected provider has credentials.
func (c Config) LLMConfigured() bool {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey != ""
	}
	return c.AnthropicAPIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
