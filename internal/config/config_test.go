package config

import (
	"os"
	"testing"
	"time"

	"github.com/ashureev/advisor-chat/internal/conversation"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_PATH", "ADVISOR_API_URL", "ADVISOR_GRPC_ADDR", "ADVISOR_TIMEOUT",
		"GREETING_DELAY", "FOLLOW_UP_DELAY", "CONVERSATION_TTL", "VOCABULARY_FILE",
	} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset; restore the defaults explicitly.
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "./data/advisor.db")
	t.Setenv("ADVISOR_API_URL", "http://localhost:5001")
	t.Setenv("ADVISOR_TIMEOUT", "60s")
	t.Setenv("GREETING_DELAY", "500ms")
	t.Setenv("FOLLOW_UP_DELAY", "500")
	t.Setenv("CONVERSATION_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Advisor.APIURL != "http://localhost:5001" {
		t.Errorf("APIURL = %q", cfg.Advisor.APIURL)
	}
	if cfg.Conversation.GreetingDelay != 500*time.Millisecond {
		t.Errorf("GreetingDelay = %v", cfg.Conversation.GreetingDelay)
	}
	if cfg.Conversation.FollowUpDelay != 500*time.Millisecond {
		t.Errorf("FollowUpDelay = %v", cfg.Conversation.FollowUpDelay)
	}
	if cfg.Conversation.TTL != time.Hour {
		t.Errorf("TTL = %v", cfg.Conversation.TTL)
	}
}

func TestLoadDelaysDefaultToConversationPacing(t *testing.T) {
	for _, key := range []string{"GREETING_DELAY", "FOLLOW_UP_DELAY"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Conversation.GreetingDelay != conversation.DefaultGreetingDelay {
		t.Errorf("GreetingDelay = %v, want %v", cfg.Conversation.GreetingDelay, conversation.DefaultGreetingDelay)
	}
	if cfg.Conversation.FollowUpDelay != conversation.DefaultFollowUpDelay {
		t.Errorf("FollowUpDelay = %v, want %v", cfg.Conversation.FollowUpDelay, conversation.DefaultFollowUpDelay)
	}
}

func TestValidateRejectsRelativeAdvisorURL(t *testing.T) {
	cfg := validConfig()
	cfg.Advisor.APIURL = "localhost:5001/api"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative advisor URL")
	}

	cfg.Advisor.GRPCAddr = "advisor:50051"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("gRPC address should make the HTTP URL irrelevant: %v", err)
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Conversation.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero TTL")
	}

	cfg = validConfig()
	cfg.Conversation.GreetingDelay = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative greeting delay")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2m")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 2*time.Minute {
		t.Errorf("got %v, want 2m", got)
	}
	t.Setenv("TEST_DURATION", "250")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("got %v, want 250ms", got)
	}
	t.Setenv("TEST_DURATION", "soon")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := validConfig()
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("AllowedOrigins() = %v", got)
	}
	cfg.FrontendURL = "https://advisor.example.edu/"
	if got := cfg.AllowedOrigins(); got[0] != "https://advisor.example.edu" {
		t.Errorf("AllowedOrigins() = %v", got)
	}
}

func validConfig() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "./data/advisor.db",
		Advisor: AdvisorConfig{
			APIURL:  "http://localhost:5001",
			Timeout: time.Minute,
		},
		Conversation: ConversationConfig{TTL: time.Hour},
		ConversationLog: ConversationLogConfig{
			Dir:        "./logs",
			GlobalPath: "./logs/all.ndjson",
			QueueSize:  10,
		},
	}
}
