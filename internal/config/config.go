package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultModelName   = "gpt-3.5-turbo"
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// Config holds application configuration. It is loaded once at startup and
// never mutated afterwards.
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// OpenAI completion settings
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ModelName     string
	MaxTokens     int
	Temperature   float64
}

// ConfigurationError reports an environment value that is present but cannot
// be parsed. It is fatal at startup.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: invalid %s %q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads configuration from environment variables. A missing API key is
// not an error here; callers check APIKeyConfigured before issuing requests.
func Load() (*Config, error) {
	maxTokens, err := getEnvAsInt("MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return nil, err
	}
	temperature, err := getEnvAsFloat("TEMPERATURE", defaultTemperature)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		OpenAIAPIKey:  strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		ModelName:     getEnv("MODEL_NAME", defaultModelName),
		MaxTokens:     maxTokens,
		Temperature:   temperature,
	}, nil
}

// APIKeyConfigured reports whether requests to the completion API can be attempted.
func (c *Config) APIKeyConfigured() bool {
	return c != nil && c.OpenAIAPIKey != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer. Unlike a plain
// default lookup, a value that is set but malformed is reported.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Value: valueStr, Err: err}
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Value: valueStr, Err: err}
	}
	return value, nil
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
