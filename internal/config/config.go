package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MaxHistoryWindow is the largest number of prior messages sent with a turn.
const MaxHistoryWindow = 8

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Sessions
	SessionSecret      string
	SessionIdleTimeout time.Duration
	TurnsPerMinute     int

	// Credentials
	CredentialSecret string

	// Redis (optional)
	RedisURL string

	// Gemini AI
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float64
	GeminiTopP        float64
	GeminiTimeout     time.Duration
	HistoryWindow     int

	// Frontend
	FrontendURL    string
	WhatsAppNumber string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	sessionSecret := mustGetEnv("SESSION_SECRET")

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		SessionSecret:      sessionSecret,
		SessionIdleTimeout: getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		TurnsPerMinute:     getEnvAsIntOrDefault("TURNS_PER_MINUTE", 20),
		CredentialSecret:   getEnvOrDefault("CREDENTIAL_SECRET", sessionSecret),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiTemperature:  getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.8),
		GeminiTopP:         getEnvAsFloatOrDefault("GEMINI_TOP_P", 0.9),
		GeminiTimeout:      getEnvAsDurationOrDefault("GEMINI_TIMEOUT", 60*time.Second),
		HistoryWindow:      clampHistoryWindow(getEnvAsIntOrDefault("HISTORY_WINDOW", MaxHistoryWindow)),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		WhatsAppNumber:     getEnvOrDefault("WHATSAPP_NUMBER", "5519987719618"),
	}

	return cfg
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func clampHistoryWindow(n int) int {
	if n < 1 || n > MaxHistoryWindow {
		return MaxHistoryWindow
	}
	return n
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
	if err != nil {
		return defaultVal
	}
	return f
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
