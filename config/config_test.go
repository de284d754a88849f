package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", settings.Server.Addr())
	assert.Equal(t, "openai", settings.Model.Provider)
	assert.Equal(t, 0.7, settings.Model.Temperature)
	assert.Equal(t, 8, settings.Workflow.MaxHops)
	assert.Equal(t, 120*time.Second, settings.Workflow.Timeout)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Empty(t, settings.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BIOAI_SERVER_PORT", "9090")
	t.Setenv("BIOAI_MODEL_PROVIDER", "anthropic")
	t.Setenv("BIOAI_MODEL_API_KEY", "test-key")
	t.Setenv("BIOAI_MODEL_NAME", "claude-sonnet-4-20250514")
	t.Setenv("BIOAI_MODEL_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("BIOAI_REDIS_ADDR", "localhost:6379")
	t.Setenv("BIOAI_REDIS_PASSWORD", "hunter2")
	t.Setenv("BIOAI_WORKFLOW_MAX_HOPS", "4")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, settings.Server.Port)
	assert.Equal(t, "anthropic", settings.Model.Provider)
	assert.Equal(t, "test-key", settings.Model.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", settings.Model.Name)
	assert.Equal(t, "http://localhost:11434/v1", settings.Model.BaseURL)
	assert.Equal(t, "localhost:6379", settings.Redis.Addr)
	assert.Equal(t, "hunter2", settings.Redis.Password)
	assert.Equal(t, 4, settings.Workflow.MaxHops)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("BIOAI_MODEL_PROVIDER", "bard")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("BIOAI_SERVER_PORT", "-1")

	_, err := Load()
	require.Error(t, err)
}
