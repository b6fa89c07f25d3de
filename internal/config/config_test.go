package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.True(t, cfg.Sandbox.Headless)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	data := []byte("generation:\n  max_attempts: 5\n  wall_clock: 2m\nllm:\n  model: gemini-2.5-pro\n  timeout: 30s\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, "2m", cfg.Generation.WallClock)
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("LESSONFORGE_API_KEY", "env-key")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestValidateRejectsBadAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  max_attempts: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
