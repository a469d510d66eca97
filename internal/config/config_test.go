package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.SemanticEnabled())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	require.Equal(t, "audiencelens", cfg.Name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER_API_KEY", "test-key")
	t.Setenv("UNIFIED_ROLLOUT_PERCENTAGE", "150")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("DISABLE_NLP", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "genai", cfg.Embedding.Provider)
	require.Equal(t, "test-key", cfg.Embedding.GenAIAPIKey)
	require.Equal(t, 100, cfg.Router.RolloutPercentage, "must clamp out-of-range rollout percentage")
	require.Equal(t, 0.9, cfg.Similarity.Threshold)
	require.True(t, cfg.Query.DisableNLP)
	require.True(t, cfg.SemanticEnabled())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	cfg := DefaultConfig()
	cfg.Name = "custom"
	require.NoError(t, cfg.Save(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom", loaded.Name)
}

func TestValidateRejectsBadRouterConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Router.RolloutPercentage = 101
	require.Error(t, cfg.Validate())
}
