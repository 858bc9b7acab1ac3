package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
models:
  m1:
    provider: openai
    model: gpt-4o
    api_key: test-key-1
  m2:
    provider: anthropic
    model: claude-3-5-sonnet-20241022
    api_key: test-key-2
embedding:
  api_key: embed-key
judge:
  model_id: m1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.InDelta(t, 0.25, cfg.Scoring.BLEUWeight, 1e-9)
	assert.InDelta(t, 0.5, cfg.Scoring.CosineWeight, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.Planner.ModelTimeout)
	assert.InDelta(t, 0.7, cfg.Planner.MinRelevance, 1e-9)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Len(t, cfg.Models, 2)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("ARENA_SERVER_ADDR", ":9090")
	t.Setenv("ARENA_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsMissingModels(t *testing.T) {
	_, err := Load(writeConfig(t, `
embedding:
  api_key: embed-key
judge:
  model_id: m1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
models:
  m1:
    provider: mystery
    model: x
    api_key: k
embedding:
  api_key: embed-key
judge:
  model_id: m1
`))
	require.Error(t, err)
}

func TestRegistryConfigConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	registry := cfg.RegistryConfig()
	require.Contains(t, registry.Models, "m1")
	assert.Equal(t, "openai", registry.Models["m1"].Provider)
	assert.Equal(t, "gpt-4o", registry.Models["m1"].Model)
	assert.Equal(t, 2, registry.MaxRetries)
}
