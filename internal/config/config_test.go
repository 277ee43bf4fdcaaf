package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "MODEL_NAME", "MAX_TOKENS", "TEMPERATURE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	assert.Equal(t, "gpt-3.5-turbo", cfg.ModelName)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.APIKeyConfigured())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("MODEL_NAME", "gpt-4o-mini")
	t.Setenv("MAX_TOKENS", "512")
	t.Setenv("TEMPERATURE", "0.25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.ModelName)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.InDelta(t, 0.25, cfg.Temperature, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.APIKeyConfigured())
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"max tokens not an int", "MAX_TOKENS", "lots"},
		{"max tokens float", "MAX_TOKENS", "20.5"},
		{"temperature not a float", "TEMPERATURE", "warm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
			assert.Equal(t, tt.value, cfgErr.Value)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadToleratesMissingAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "   ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.APIKeyConfigured())
}

func TestAPIKeyConfiguredNilSafe(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.APIKeyConfigured())
}
