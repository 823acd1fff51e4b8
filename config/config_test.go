package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/store"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, store.TypeSQLite, cfg.Store.Type)
	assert.Equal(t, "local", cfg.Cache.Backend)
	assert.Equal(t, 2500, cfg.Guardrails.MaxTextChars)
	assert.True(t, cfg.Guardrails.ShowPanelOnLLMBudget)
	assert.False(t, cfg.Model.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 30, cfg.Sweep.RetentionDays)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := []byte(`
environment: production
server:
  port: "9000"
guardrails:
  max_text_chars: 1000
store:
  type: memory
`)
	require.NoError(t, os.WriteFile(path, yamlBody, 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("MASTER_KEY", "sk-test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("MODEL_ENABLED", "true")
	t.Setenv("MODEL_TIMEOUT", "20s")

	cfg, err := Load()
	require.NoError(t, err)

	// YAML overrides defaults; env overrides YAML.
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Server.MasterKey)
	assert.Equal(t, 1000, cfg.Guardrails.MaxTextChars)
	assert.Equal(t, store.TypeMemory, cfg.Store.Type)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379", cfg.Cache.Redis.URL)
	assert.True(t, cfg.Model.Enabled)
	assert.Equal(t, 20*time.Second, cfg.Model.Timeout)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	t.Setenv("CONFIG_FILE", path)
	_, err := Load()
	require.Error(t, err)
}
