// Package config loads runtime settings from a YAML file and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SSOConfig locates the enterprise login and gateway endpoints.
type SSOConfig struct {
	URL        string `mapstructure:"url"`
	GatewayURL string `mapstructure:"gateway_url"`
	ProjectID  string `mapstructure:"project_id"`
	Location   string `mapstructure:"location"`
	Model      string `mapstructure:"model"`
}

// Config is the full runtime configuration.
type Config struct {
	DataDir        string    `mapstructure:"data_dir"`
	LogLevel       string    `mapstructure:"log_level"`
	Listen         string    `mapstructure:"listen"`
	OllamaURL      string    `mapstructure:"ollama_url"`
	DefaultModel   string    `mapstructure:"default_model"`
	SystemPrompt   string    `mapstructure:"system_prompt"`
	EmbeddingModel string    `mapstructure:"embedding_model"`
	SSO            SSOConfig `mapstructure:"sso"`
}

// Load reads configuration from path when given, otherwise from
// pageassist.yaml in the working directory or ~/.pageassist. Environment
// variables prefixed PAGEASSIST_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", "~/.pageassist")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "127.0.0.1:8987")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("embedding_model", "nomic-embed-text:latest")
	v.SetDefault("sso.location", "us-central1")
	v.SetDefault("sso.model", "gemini-2.5-flash")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pageassist")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pageassist")
	}

	v.SetEnvPrefix("PAGEASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
