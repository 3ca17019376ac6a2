// Package boot provides runtime configuration and dependency wiring for the server.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/storepilotai/storepilot/internal/config"
)

// RuntimeConfig holds parsed runtime settings (JWT, server address, provider keys).
// Values may be overridden by environment variables (e.g. HTTP_ADDR, OPENROUTER_API_KEY).
type RuntimeConfig struct {
	JwtSecret         string
	JwtExpiresIn      time.Duration
	ServerAddr        string
	ShopifyAPIKey     string
	ShopifyAPISecret  string
	OpenRouterAPIKey  string
	HuggingFaceAPIKey string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" && os.Getenv("JWT_SECRET") == "" {
		return nil, errors.New("jwt secret is required")
	}

	jwtExpiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}

	ret := &RuntimeConfig{
		JwtSecret:         cfg.Auth.JWTSecret,
		JwtExpiresIn:      jwtExpiresIn,
		ServerAddr:        cfg.Server.Addr,
		ShopifyAPIKey:     cfg.Shopify.APIKey,
		ShopifyAPISecret:  cfg.Shopify.APISecret,
		OpenRouterAPIKey:  cfg.OpenRouter.APIKey,
		HuggingFaceAPIKey: cfg.HuggingFace.APIKey,
	}

	if value := os.Getenv("JWT_SECRET"); value != "" {
		ret.JwtSecret = value
	}
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	if value := os.Getenv("SHOPIFY_API_KEY"); value != "" {
		ret.ShopifyAPIKey = value
	}
	if value := os.Getenv("SHOPIFY_API_SECRET"); value != "" {
		ret.ShopifyAPISecret = value
	}
	if value := os.Getenv("OPENROUTER_API_KEY"); value != "" {
		ret.OpenRouterAPIKey = value
	}
	if value := os.Getenv("HUGGINGFACE_API_KEY"); value != "" {
		ret.HuggingFaceAPIKey = value
	}
	return ret, nil
}
