package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Preview PreviewConfig `mapstructure:"preview"`
	Stub    StubConfig    `mapstructure:"stub"`
}

// ServerConfig holds admin API connection configuration
type ServerConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	PublicBaseURL        string `mapstructure:"public_base_url"`
	Timeout              int    `mapstructure:"timeout"`
	MaxRetries           int    `mapstructure:"max_retries"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
}

// EditorConfig holds the editing session defaults
type EditorConfig struct {
	StartPath   string `mapstructure:"start_path"`
	DefaultAlt  string `mapstructure:"default_alt"`
	Target      string `mapstructure:"target"`
	UILanguage  string `mapstructure:"ui_language"`
	LoadTimeout int    `mapstructure:"load_timeout"`
}

// AuditConfig holds the local editing event log configuration
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// PreviewConfig holds public-page preview fetching configuration
type PreviewConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"`
}

// StubConfig holds the development stub server configuration
type StubConfig struct {
	Addr    string `mapstructure:"addr"`
	Fixture string `mapstructure:"fixture"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.base_url", "http://localhost:5005/admin/api")
	viper.SetDefault("server.public_base_url", "http://localhost:5005")
	viper.SetDefault("server.timeout", 30)
	viper.SetDefault("server.max_retries", 3)
	viper.SetDefault("server.max_requests_per_second", 20)

	viper.SetDefault("editor.start_path", "/")
	viper.SetDefault("editor.default_alt", "_primary")
	viper.SetDefault("editor.target", "edit")
	viper.SetDefault("editor.ui_language", "en")
	viper.SetDefault("editor.load_timeout", 15)

	viper.SetDefault("audit.path", "")

	viper.SetDefault("preview.enabled", false)
	viper.SetDefault("preview.timeout", 10)

	viper.SetDefault("stub.addr", ":5005")
	viper.SetDefault("stub.fixture", "site.yaml")
}
