package config

import (
	"fmt"
	"time"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/spf13/viper"
)

// Config holds the configuration for the chat widget and the backend proxy
type Config struct {
	UseBackend    bool   `toml:"use_backend" mapstructure:"use_backend"`
	APIKey        string `toml:"api_key" mapstructure:"api_key"`
	BackendURL    string `toml:"backend_url" mapstructure:"backend_url"`
	UploadURL     string `toml:"upload_url" mapstructure:"upload_url"`
	BackendToken  string `toml:"backend_token" mapstructure:"backend_token"`
	Origin        string `toml:"origin" mapstructure:"origin"` // Base for relative backend URLs
	Model         string `toml:"model" mapstructure:"model"`
	GeminiBaseURL string `toml:"gemini_base_url" mapstructure:"gemini_base_url"`
	Position      string `toml:"position" mapstructure:"position"`         // "left" or "right"
	ButtonColor   string `toml:"button_color" mapstructure:"button_color"` // UI only
	LogLevel      string `toml:"log_level" mapstructure:"log_level"`

	ProxyAddr              string        `toml:"proxy_addr" mapstructure:"proxy_addr"`
	ProxyGeminiAPIKey      string        `toml:"proxy_gemini_api_key" mapstructure:"proxy_gemini_api_key"`
	ProxyAllowedOrigins    []string      `toml:"proxy_allowed_origins" mapstructure:"proxy_allowed_origins"`
	ProxyRateLimitRequests int           `toml:"proxy_rate_limit_requests" mapstructure:"proxy_rate_limit_requests"`
	ProxyRateLimitWindow   time.Duration `toml:"proxy_rate_limit_window" mapstructure:"proxy_rate_limit_window"`
	ProxyJWTSecret         string        `toml:"proxy_jwt_secret" mapstructure:"proxy_jwt_secret"` // Empty disables auth
	ProxyMaxUploadBytes    int64         `toml:"proxy_max_upload_bytes" mapstructure:"proxy_max_upload_bytes"`
	ProxyLogLevel          string        `toml:"proxy_log_level" mapstructure:"proxy_log_level"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		UseBackend:    false,
		APIKey:        "$GEMINI_API_KEY", // Default to env var
		BackendURL:    chatassist.DefaultBackendURL,
		UploadURL:     chatassist.DefaultUploadURL,
		BackendToken:  "",
		Origin:        "http://localhost:8080",
		Model:         chatassist.DefaultModel,
		GeminiBaseURL: chatassist.DefaultGeminiBaseURL,
		Position:      "right",
		ButtonColor:   "#6366f1",
		LogLevel:      "warn",

		ProxyAddr:              ":8080",
		ProxyGeminiAPIKey:      "$GEMINI_API_KEY",
		ProxyAllowedOrigins:    []string{"https://*", "http://*"},
		ProxyRateLimitRequests: 60,
		ProxyRateLimitWindow:   time.Minute,
		ProxyJWTSecret:         "",
		ProxyMaxUploadBytes:    20 << 20,
		ProxyLogLevel:          "info",
	}
}

// SetDefaults registers every default value with viper
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("use_backend", d.UseBackend)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("backend_url", d.BackendURL)
	v.SetDefault("upload_url", d.UploadURL)
	v.SetDefault("backend_token", d.BackendToken)
	v.SetDefault("origin", d.Origin)
	v.SetDefault("model", d.Model)
	v.SetDefault("gemini_base_url", d.GeminiBaseURL)
	v.SetDefault("position", d.Position)
	v.SetDefault("button_color", d.ButtonColor)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("proxy_addr", d.ProxyAddr)
	v.SetDefault("proxy_gemini_api_key", d.ProxyGeminiAPIKey)
	v.SetDefault("proxy_allowed_origins", d.ProxyAllowedOrigins)
	v.SetDefault("proxy_rate_limit_requests", d.ProxyRateLimitRequests)
	v.SetDefault("proxy_rate_limit_window", d.ProxyRateLimitWindow)
	v.SetDefault("proxy_jwt_secret", d.ProxyJWTSecret)
	v.SetDefault("proxy_max_upload_bytes", d.ProxyMaxUploadBytes)
	v.SetDefault("proxy_log_level", d.ProxyLogLevel)
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from the given viper instance, expanding
// environment variable references and validating the result
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	var err error
	if config.APIKey, err = expandEnvVar(config.APIKey); err != nil {
		return nil, err
	}
	if config.BackendToken, err = expandEnvVar(config.BackendToken); err != nil {
		return nil, err
	}
	if config.ProxyGeminiAPIKey, err = expandEnvVar(config.ProxyGeminiAPIKey); err != nil {
		return nil, err
	}
	if config.ProxyJWTSecret, err = expandEnvVar(config.ProxyJWTSecret); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values the widget cannot recover from at dispatch time
func (c *Config) Validate() error {
	switch c.Position {
	case "", "left", "right":
	default:
		return fmt.Errorf("invalid position %q (expected left or right)", c.Position)
	}
	if c.ProxyRateLimitRequests < 0 {
		return fmt.Errorf("proxy_rate_limit_requests must not be negative")
	}
	if c.ProxyMaxUploadBytes < 0 {
		return fmt.Errorf("proxy_max_upload_bytes must not be negative")
	}
	return nil
}

// ChatConfig projects the loaded configuration onto the core session config
func (c *Config) ChatConfig() chatassist.ChatConfig {
	return chatassist.ChatConfig{
		UseBackend:    c.UseBackend,
		APIKey:        c.APIKey,
		BackendURL:    c.BackendURL,
		UploadURL:     c.UploadURL,
		BackendToken:  c.BackendToken,
		Origin:        c.Origin,
		Model:         c.Model,
		GeminiBaseURL: c.GeminiBaseURL,
		Position:      c.Position,
		ButtonColor:   c.ButtonColor,
	}
}
