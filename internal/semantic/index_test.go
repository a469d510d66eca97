package semantic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"audiencelens/internal/catalog"
	"audiencelens/internal/config"
)

// fakeEngine returns a deterministic embedding: the vector set in vecs for
// that exact text, or 0.01 in every dimension otherwise, so cosine
// similarity is controllable in tests without a network call.
type fakeEngine struct {
	dims int
	vecs map[string][]float32
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	out := make([]float32, f.dims)
	for i := range out {
		out[i] = 0.01
	}
	return out, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

func buildTestSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	content := "code,name,description,category,theme,product,domain,data_type\n" +
		"AGE_25_34,Adults 25-34,\"Adults aged 25 to 34\",demographic,theme1,product1,domain1,numeric\n" +
		"INCOME_HIGH,High Income,\"Household income over 100k\",financial,theme1,product1,domain1,numeric\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	snap, err := catalog.Load("", path, "")
	require.NoError(t, err)
	return snap
}

func TestSearchReturnsUnavailableWithNoEngine(t *testing.T) {
	snap := buildTestSnapshot(t)
	idx := Build(snap, nil, config.EmbeddingConfig{}, config.ResilienceConfig{})

	results, unavailable, err := idx.Search(context.Background(), "high income", 10)
	require.NoError(t, err)
	require.True(t, unavailable)
	require.Empty(t, results)
}

func TestSearchReturnsUnavailableWithNoEmbeddings(t *testing.T) {
	snap := buildTestSnapshot(t)
	engine := &fakeEngine{dims: 4}
	idx := Build(snap, engine, config.EmbeddingConfig{}, config.ResilienceConfig{})

	_, unavailable, _ := idx.Search(context.Background(), "high income", 10)
	require.True(t, unavailable)
}

func TestSearchRanksClosestVectorFirst(t *testing.T) {
	snap := buildTestSnapshot(t)
	snap.Get("AGE_25_34").Embedding = []float32{1, 0, 0, 0}
	snap.Get("INCOME_HIGH").Embedding = []float32{0, 1, 0, 0}

	engine := &fakeEngine{dims: 4, vecs: map[string][]float32{
		"income query": {0, 1, 0, 0},
	}}
	idx := Build(snap, engine, config.EmbeddingConfig{TopN: 10}, config.ResilienceConfig{})
	require.Equal(t, 2, idx.Count())

	results, unavailable, err := idx.Search(context.Background(), "income query", 10)
	require.NoError(t, err)
	require.False(t, unavailable)
	require.NotEmpty(t, results)
	require.Equal(t, "INCOME_HIGH", results[0].Code)
	require.InDelta(t, 1.0, results[0].SemanticScore, 1e-6)
}

func TestSemScoreMapsToUnitRange(t *testing.T) {
	require.InDelta(t, 1.0, semScore(1), 1e-9)
	require.InDelta(t, 0.0, semScore(-1), 1e-9)
	require.InDelta(t, 0.5, semScore(0), 1e-9)
}
