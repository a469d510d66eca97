package scoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"audiencelens/internal/catalog"
	"audiencelens/internal/config"
	"audiencelens/internal/keyword"
	"audiencelens/internal/semantic"
)

func buildSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	content := "code,name,description,category,theme,product,domain,data_type\n" +
		"AGE_25_34,Adults 25-34,\"Adults aged 25 to 34\",demographic,theme1,product1,automotive,numeric\n" +
		"INCOME_HIGH,High Income,\"Household income over 100k\",financial,theme1,product1,finance,numeric\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	snap, err := catalog.Load("", path, "")
	require.NoError(t, err)
	return snap
}

func TestScoreFallsBackToKeywordOnlyWithoutSemanticIndex(t *testing.T) {
	snap := buildSnapshot(t)
	idx := keyword.Build(snap)
	sc := New(config.ScoringConfig{WeightSemantic: 0.7, WeightKeyword: 0.3, DefaultTopK: 10, MaxTopK: 50}, idx, nil)

	result, err := sc.Score(context.Background(), []string{"income"}, "income", "", nil, 10)
	require.NoError(t, err)
	require.True(t, result.SemanticUnavailable)
	require.NotEmpty(t, result.Candidates)
	require.Equal(t, "INCOME_HIGH", result.Candidates[0].Code)
	require.InDelta(t, result.Candidates[0].KeywordScore, result.Candidates[0].FusedScore, 1e-6)
}

func TestScoreAppliesDomainBoost(t *testing.T) {
	snap := buildSnapshot(t)
	idx := keyword.Build(snap)
	sc := New(config.ScoringConfig{WeightSemantic: 0.7, WeightKeyword: 0.3, DomainBoost: 1.1, DefaultTopK: 10, MaxTopK: 50}, idx, nil)

	// "aged" matches only AGE_25_34, so INCOME_HIGH tops both lists below
	// 1.0 (0.8) and the capped boost can still raise it (0.88).
	noBoost, err := sc.Score(context.Background(), []string{"income", "aged"}, "income aged", "", nil, 10)
	require.NoError(t, err)
	withBoost, err := sc.Score(context.Background(), []string{"income", "aged"}, "income aged", "finance", nil, 10)
	require.NoError(t, err)

	require.Greater(t, withBoost.Candidates[0].FusedScore, noBoost.Candidates[0].FusedScore)
}

func TestScoreClampsTopK(t *testing.T) {
	snap := buildSnapshot(t)
	idx := keyword.Build(snap)
	sc := New(config.ScoringConfig{DefaultTopK: 10, MaxTopK: 1}, idx, nil)

	result, err := sc.Score(context.Background(), []string{"income", "adults"}, "income adults", "", nil, 100)
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.Candidates), 1)
}

func TestScoreSemanticUnavailableFlagPropagates(t *testing.T) {
	snap := buildSnapshot(t)
	idx := keyword.Build(snap)
	sem := semantic.Build(snap, nil, config.EmbeddingConfig{}, config.ResilienceConfig{})
	sc := New(config.ScoringConfig{DefaultTopK: 10, MaxTopK: 50}, idx, sem)

	result, err := sc.Score(context.Background(), []string{"income"}, "income", "", nil, 10)
	require.NoError(t, err)
	require.True(t, result.SemanticUnavailable)
}
