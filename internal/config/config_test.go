package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.openai.com/v1", cfg.Service.BaseURL)
	assert.Equal(t, 0.1, cfg.Memory.MinSimilarity)
	assert.Equal(t, "USA", cfg.Pipeline.DomesticCountry)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Service.Model, cfg.Service.Model)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defrec.yaml")
	data := []byte("service:\n  model: custom-model\n  timeout: 15s\nmemory:\n  min_similarity: 0.2\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("DEFREC_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", cfg.Service.Model)
	assert.Equal(t, 0.2, cfg.Memory.MinSimilarity)
	assert.Equal(t, "sk-test", cfg.Service.APIKey)

	d, err := cfg.ServiceTimeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.MinSimilarity = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.Timeout = "soon"
	assert.Error(t, cfg.Validate())
}
