// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/advisor-chat/internal/conversation"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	Advisor         AdvisorConfig
	Conversation    ConversationConfig
	ConversationLog ConversationLogConfig
	Timeout         TimeoutConfig
}

// AdvisorConfig selects and tunes the advisory service client.
// GRPCAddr takes precedence over APIURL when set.
type AdvisorConfig struct {
	APIURL   string
	GRPCAddr string
	Timeout  time.Duration
}

// ConversationConfig tunes conversation pacing and retention.
type ConversationConfig struct {
	GreetingDelay  time.Duration
	FollowUpDelay  time.Duration
	TTL            time.Duration
	UserRetention  time.Duration
	VocabularyFile string
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// TimeoutConfig holds server-side timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/advisor.db"),
		Advisor: AdvisorConfig{
			APIURL:   getEnv("ADVISOR_API_URL", "http://localhost:5001"),
			GRPCAddr: getEnv("ADVISOR_GRPC_ADDR", ""),
			Timeout:  getEnvDuration("ADVISOR_TIMEOUT", 60*time.Second),
		},
		Conversation: ConversationConfig{
			GreetingDelay:  getEnvDuration("GREETING_DELAY", conversation.DefaultGreetingDelay),
			FollowUpDelay:  getEnvDuration("FOLLOW_UP_DELAY", conversation.DefaultFollowUpDelay),
			TTL:            getEnvDuration("CONVERSATION_TTL", 60*time.Minute),
			UserRetention:  getEnvDuration("USER_RETENTION", 30*24*time.Hour),
			VocabularyFile: getEnv("VOCABULARY_FILE", ""),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Advisor.GRPCAddr == "" {
		u, err := url.Parse(c.Advisor.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ADVISOR_API_URL must be an absolute URL, got %q", c.Advisor.APIURL)
		}
	}
	if c.Advisor.Timeout <= 0 {
		return fmt.Errorf("ADVISOR_TIMEOUT must be > 0")
	}
	if c.Conversation.GreetingDelay < 0 || c.Conversation.FollowUpDelay < 0 {
		return fmt.Errorf("GREETING_DELAY and FOLLOW_UP_DELAY cannot be negative")
	}
	if c.Conversation.TTL <= 0 {
		return fmt.Errorf("CONVERSATION_TTL must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("750ms", "2m") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
