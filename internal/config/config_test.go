package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultHistoryBackend, cfg.History.Backend)
	assert.Equal(t, DefaultOpenRouterBase, cfg.OpenRouter.BaseURL)
	assert.Equal(t, DefaultHFModel, cfg.HuggingFace.Model)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = ":9090"

[shopify]
api_key = "key"
api_secret = "secret"
scopes = "read_products, write_products"

[history]
backend = "memory"
retention = 25
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, 25, cfg.History.Retention)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultPGPort, cfg.Postgres.Port)
	assert.Equal(t, []string{"read_products", "write_products"}, cfg.Shopify.ScopeList())
}
