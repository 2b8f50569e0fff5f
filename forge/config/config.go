package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// ServerConfig stores HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // path to the embedded libsql database file
}

// OpenAIConfig stores completion provider settings. The API key is only read
// from the environment, never from a config file.
type OpenAIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float32       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OrchestratorConfig stores pipeline settings.
type OrchestratorConfig struct {
	RetryCount    int           `mapstructure:"retry_count"`    // provider call attempts
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`  // base delay unit between attempts
	EnableTracing bool          `mapstructure:"enable_tracing"` // structured span/event tracing
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ideaforge")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Set default values
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("database.path", "data/ideaforge.db")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 0)
	v.SetDefault("openai.temperature", 0)
	v.SetDefault("openai.request_timeout", 60*time.Second)
	v.SetDefault("orchestrator.retry_count", 2)
	v.SetDefault("orchestrator.retry_backoff", time.Second)
	v.SetDefault("orchestrator.enable_tracing", true)

	v.SetEnvPrefix("IDEAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Orchestrator.RetryCount < 1 {
		cfg.Orchestrator.RetryCount = 1
	}
	if cfg.Orchestrator.RetryBackoff <= 0 {
		cfg.Orchestrator.RetryBackoff = time.Second
	}

	return &cfg, nil
}
