package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		Port:                     "8000",
		DBDriver:                 "sqlite",
		DBPassword:               "secure-password",
		MaxUploadSizeMB:          10,
		DBConnMaxLifetimeMinutes: 1,
		Language:                 "en",
		OllamaURL:                "http://localhost:11434",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		driver      string
		sslMode     string
		expectError bool
	}{
		{"Production postgres with empty SSL mode", "production", "postgres", "", true},
		{"Production postgres with disable SSL mode", "production", "postgres", "disable", true},
		{"Production postgres with require SSL mode", "production", "postgres", "require", false},
		{"Prod postgres with verify-full SSL mode", "prod", "postgres", "verify-full", false},
		{"Production sqlite ignores SSL mode", "production", "sqlite", "disable", false},
		{"Development with disable SSL mode", "development", "postgres", "disable", false},
		{"Test with empty SSL mode", "test", "postgres", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBDriver = tt.driver
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"default secret in production", func(c *Config) { c.Env = "production"; c.JWTSecret = defaultJWTSecret }},
		{"short secret in production", func(c *Config) { c.Env = "production"; c.JWTSecret = "short" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"unknown language", func(c *Config) { c.Language = "de" }},
		{"zero upload size", func(c *Config) { c.MaxUploadSizeMB = 0 }},
		{"relative ollama url", func(c *Config) { c.OllamaURL = "localhost:11434" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "glm-4.6:cloud", c.OllamaChatModel)
	assert.Equal(t, "gpt-oss:20b-cloud", c.OllamaAnalysisModel)
	assert.Equal(t, 300, c.OllamaTimeoutSeconds)
	assert.Equal(t, 720, c.SessionLifetimeHours)
	assert.Equal(t, 10, c.MaxUploadSizeMB)
	assert.Equal(t, 3, c.StartingCredits)
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434/")
	t.Setenv("LANGUAGE", "RU")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://ollama.internal:11434", c.OllamaURL)
	assert.Equal(t, "ru", c.Language)
}
