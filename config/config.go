// Package config loads service settings from environment variables and an
// optional JSON config file in the user's home directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the full service configuration.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Model    ModelSettings    `mapstructure:"model"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Workflow WorkflowSettings `mapstructure:"workflow"`
	Log      LogSettings      `mapstructure:"log"`
}

type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ModelSettings struct {
	// Provider selects the completion backend: "openai" or "anthropic".
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type RedisSettings struct {
	// Addr enables the Redis event recorder when non-empty.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkflowSettings struct {
	MaxHops int           `mapstructure:"max_hops"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads settings from BIOAI_* environment variables, overlaid on an
// optional ~/.bioai/config.json file and built-in defaults.
func Load() (*Settings, error) {
	v := viper.New()

	// AutomaticEnv only surfaces keys viper already tracks, so every
	// settable key needs a default here, even an empty one.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.max_tokens", 1000)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("workflow.max_hops", 8)
	v.SetDefault("workflow.timeout", 120*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("BIOAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".bioai", "config.json"))
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Settings) validate() error {
	switch s.Model.Provider {
	case "openai", "anthropic", "none":
	default:
		return fmt.Errorf("unknown model provider %q", s.Model.Provider)
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", s.Server.Port)
	}
	if s.Workflow.MaxHops <= 0 {
		return fmt.Errorf("workflow max_hops must be positive")
	}
	return nil
}
