package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPopulatesEverySection(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "memory", cfg.VectorStoreType)
	assert.Equal(t, 1000, cfg.MaxChunkSize)
	assert.Equal(t, 10, cfg.WindowSize)
	assert.Equal(t, 0.08, cfg.DiscoveryThreshold)
	assert.Equal(t, 5, cfg.DefaultSearchLimit)
	assert.NotNil(t, cfg.APIKeys)
}

func TestLoadConfigFilePrecedesDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ragcore.json")
	data, err := json.Marshal(map[string]any{"provider": "local", "max_chunk_size": 500})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	t.Setenv("RAGCORE_CONFIG", configPath)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, 500, cfg.MaxChunkSize)
	// Fields absent from the file fall back to the programmatic default.
	assert.Equal(t, 100, cfg.MinChunkSize)
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ragcore.json")
	data, err := json.Marshal(map[string]any{"provider": "local"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0o644))

	t.Setenv("RAGCORE_CONFIG", configPath)
	t.Setenv("RAGCORE_PROVIDER", "openai")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider, "an explicitly set env var must win over the file")
}

func TestLoadConfigWithoutAnyFileUsesDefaults(t *testing.T) {
	t.Setenv("RAGCORE_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.json"))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
}

func TestLoadConfigAPIKeyPopulatesAPIKeysMap(t *testing.T) {
	t.Setenv("RAGCORE_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.json"))
	t.Setenv("RAGCORE_API_KEY", "secret-value")
	t.Setenv("RAGCORE_PROVIDER", "openai")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "secret-value", cfg.APIKeys["openai"])
}

func TestConfigSaveRoundTrips(t *testing.T) {
	cfg := defaultConfig()
	cfg.Provider = "local"
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Config
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "local", loaded.Provider)
}
