package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	os.Setenv("TEST_FLOAT_1", "0.75")
	defer os.Unsetenv("TEST_FLOAT_1")
	os.Setenv("TEST_FLOAT_2", "warm")
	defer os.Unsetenv("TEST_FLOAT_2")

	if got := getEnvAsFloatOrDefault("TEST_FLOAT_1", 0.8); got != 0.75 {
		t.Errorf("Expected 0.75, got %v", got)
	}
	if got := getEnvAsFloatOrDefault("TEST_FLOAT_2", 0.8); got != 0.8 {
		t.Errorf("Expected default 0.8, got %v", got)
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"parses duration", "90s", 90 * time.Second},
		{"rejects garbage", "soon", time.Minute},
		{"rejects negative", "-5m", time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			os.Setenv("TEST_DURATION", tc.envValue)
			defer os.Unsetenv("TEST_DURATION")

			if got := getEnvAsDurationOrDefault("TEST_DURATION", time.Minute); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestClampHistoryWindow(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{6, 6},
		{8, 8},
		{1, 1},
		{0, MaxHistoryWindow},
		{-3, MaxHistoryWindow},
		{50, MaxHistoryWindow},
	}
	for _, tc := range tests {
		if got := clampHistoryWindow(tc.in); got != tc.want {
			t.Errorf("clampHistoryWindow(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("SESSION_SECRET", "s3cret")
	defer os.Unsetenv("SESSION_SECRET")

	cfg := Load()
	if cfg.CredentialSecret != "s3cret" {
		t.Errorf("Expected credential secret to fall back to session secret, got %q", cfg.CredentialSecret)
	}
	if cfg.HistoryWindow != MaxHistoryWindow {
		t.Errorf("Expected history window %d, got %d", MaxHistoryWindow, cfg.HistoryWindow)
	}
	if cfg.GeminiTemperature != 0.8 || cfg.GeminiTopP != 0.9 {
		t.Errorf("Unexpected sampling defaults: %v / %v", cfg.GeminiTemperature, cfg.GeminiTopP)
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}
