package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Research.MaxSubQuestions)
	assert.Equal(t, 5, cfg.Research.ChunksPerSubQuestion)
	assert.Equal(t, 30, cfg.Research.MaxTotalChunks)
	assert.Equal(t, 3, cfg.Research.MaxFollowUpQueries)
	assert.Equal(t, 0.5, cfg.Research.SynthesisTemperature)
	assert.Equal(t, 4096, cfg.Research.SynthesisMaxTokens)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("research:\n  max_sub_questions: 2\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden field changes, siblings keep their defaults.
	assert.Equal(t, 2, cfg.Research.MaxSubQuestions)
	assert.Equal(t, 30, cfg.Research.MaxTotalChunks)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a mapping"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("CODESAGE_API_KEY", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	// Default provider is gemini, which needs a key.
	assert.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "bogus"
	assert.Error(t, cfg.Validate())

	cfg.LLM.Provider = "ollama"
	cfg.Research.MaxTotalChunks = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Research.MaxSubQuestions = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Research.MaxSubQuestions)
}
