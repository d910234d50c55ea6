package config

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Defaults for the turn-taking protocol. The confidence threshold and gather
// windows match what works on real calls: a generous first window while the
// caller decides to speak, shorter ones mid-conversation.
const (
	DefaultConfidenceMin      = 0.3
	DefaultFirstGatherTimeout = 10
	DefaultGatherTimeout      = 7
	DefaultFirstSpeechTimeout = "auto"
	DefaultSpeechTimeout      = "1.5"
	DefaultMaxHistoryTurns    = 40
	DefaultSessionIdleTTL     = 10 * time.Minute
	DefaultReaperInterval     = time.Minute
)

type Config struct {
	Port        string
	Environment string

	// External service credentials. Required; startup fails without them.
	OpenAIAPIKey    string
	GoogleTTSAPIKey string

	// PublicBaseURL is the externally reachable address the provider uses
	// to fetch synthesized audio. Required.
	PublicBaseURL string

	// TwilioAuthToken enables webhook signature validation when set.
	TwilioAuthToken string

	// CallLogDBURL enables transcript archiving to Postgres when set.
	CallLogDBURL string

	Model     string
	StaticDir string

	ConfidenceMin      float64
	FirstGatherTimeout int
	GatherTimeout      int
	FirstSpeechTimeout string
	SpeechTimeout      string
	MaxHistoryTurns    int
	SessionIdleTTL     time.Duration
	ReaperInterval     time.Duration

	CORSOrigins string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "dev"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		GoogleTTSAPIKey: getEnv("GOOGLE_TTS_API_KEY", ""),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		TwilioAuthToken: getEnv("TWILIO_AUTH_TOKEN", ""),
		CallLogDBURL:    getEnv("CALL_LOG_DB_URL", ""),

		Model:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		StaticDir: getEnv("STATIC_DIR", "static"),

		ConfidenceMin:      getEnvFloat("CONFIDENCE_MIN", DefaultConfidenceMin),
		FirstGatherTimeout: getEnvInt("FIRST_GATHER_TIMEOUT", DefaultFirstGatherTimeout),
		GatherTimeout:      getEnvInt("GATHER_TIMEOUT", DefaultGatherTimeout),
		FirstSpeechTimeout: getEnv("FIRST_SPEECH_TIMEOUT", DefaultFirstSpeechTimeout),
		SpeechTimeout:      getEnv("SPEECH_TIMEOUT", DefaultSpeechTimeout),
		MaxHistoryTurns:    getEnvInt("MAX_HISTORY_TURNS", DefaultMaxHistoryTurns),
		SessionIdleTTL:     getEnvDuration("SESSION_IDLE_TTL", DefaultSessionIdleTTL),
		ReaperInterval:     getEnvDuration("REAPER_INTERVAL", DefaultReaperInterval),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
	}
}

// Validate enforces the required startup surface. A missing credential here
// would otherwise only surface mid-call, so startup fails loudly instead.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OpenAIAPIKey, validation.Required),
		validation.Field(&c.GoogleTTSAPIKey, validation.Required),
		validation.Field(&c.PublicBaseURL, validation.Required, is.URL),
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.ConfidenceMin, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MaxHistoryTurns, validation.Min(2)),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
