// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultShopifyScopes    = "read_products,write_products,read_content,write_content,read_themes,write_themes"
	DefaultOpenRouterBase   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel  = "anthropic/claude-3.5-sonnet"
	DefaultHFBase           = "https://api-inference.huggingface.co/models"
	DefaultHFModel          = "stabilityai/stable-diffusion-xl-base-1.0"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "storepilot"
	DefaultPGSSLMode        = "disable"
	DefaultHistoryBackend   = "postgres"
	DefaultHistoryRetention = 0
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Shopify     ShopifyConfig     `toml:"shopify"`
	OpenRouter  OpenRouterConfig  `toml:"openrouter"`
	HuggingFace HuggingFaceConfig `toml:"huggingface"`
	Postgres    PostgresConfig    `toml:"postgres"`
	History     HistoryConfig     `toml:"history"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ShopifyConfig holds the app credentials for the store OAuth flow.
type ShopifyConfig struct {
	APIKey      string `toml:"api_key"`
	APISecret   string `toml:"api_secret"`
	Scopes      string `toml:"scopes"`
	RedirectURL string `toml:"redirect_url"`
}

// ScopeList returns the configured scopes split on commas.
func (c ShopifyConfig) ScopeList() []string {
	parts := strings.Split(c.Scopes, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// OpenRouterConfig holds the chat-completions provider credentials and model.
type OpenRouterConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// HuggingFaceConfig holds the image inference credentials and model.
type HuggingFaceConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// HistoryConfig selects the history backend ("postgres" or "memory") and the
// in-memory retention bound (0 keeps everything).
type HistoryConfig struct {
	Backend   string `toml:"backend"`
	Retention int    `toml:"retention"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Shopify: ShopifyConfig{
			Scopes: DefaultShopifyScopes,
		},
		OpenRouter: OpenRouterConfig{
			Model:   DefaultOpenRouterModel,
			BaseURL: DefaultOpenRouterBase,
		},
		HuggingFace: HuggingFaceConfig{
			Model:   DefaultHFModel,
			BaseURL: DefaultHFBase,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		History: HistoryConfig{
			Backend:   DefaultHistoryBackend,
			Retention: DefaultHistoryRetention,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
