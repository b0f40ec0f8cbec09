package config

import (
	"fmt"
	"os"
)

// Config holds the process configuration loaded from the environment.
type Config struct {
	// Port the HTTP listener binds to, on all interfaces.
	Port string

	// GeminiAPIKey authenticates against the Gemini API. GEMINI_API_KEY
	// wins over GOOGLE_API_KEY when both are set.
	GeminiAPIKey string

	// GeminiModel is the model name used for all completions.
	GeminiModel string
}

// LoadFromEnv reads configuration from environment variables. An API key is
// the only required value.
func LoadFromEnv() (Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY must be set")
	}

	return Config{
		Port:         getEnvOrDefault("PORT", "3000"),
		GeminiAPIKey: apiKey,
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
	}, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
