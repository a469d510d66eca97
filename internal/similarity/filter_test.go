package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"audiencelens/internal/config"
	"audiencelens/internal/models"
)

func candidate(code, name string, score float64) *models.Candidate {
	return &models.Candidate{
		Code:       code,
		Variable:   &models.Variable{Code: code, Name: name},
		FusedScore: score,
	}
}

func TestJaroWinklerIdenticalStringsScoreOne(t *testing.T) {
	require.InDelta(t, 1.0, JaroWinkler("income", "income"), 1e-9)
}

func TestJaroWinklerCatchesCloseVariants(t *testing.T) {
	sim := JaroWinkler("household income", "household incomes")
	require.Greater(t, sim, 0.9)
}

func TestApplyKeepsTopOfEachCluster(t *testing.T) {
	f := New(config.SimilarityConfig{Threshold: 0.9, MaxPerCluster: 1, Enabled: true})
	candidates := []*models.Candidate{
		candidate("A", "Household Income", 0.9),
		candidate("B", "Household Incomes", 0.8),
		candidate("C", "Age 25-34", 0.5),
	}

	out := f.Apply(candidates)
	require.Len(t, out, 2)
	require.Equal(t, "A", out[0].Code)
	require.Equal(t, "C", out[1].Code)
}

func TestApplyNeverDropsSoleTopCandidate(t *testing.T) {
	f := New(config.SimilarityConfig{Threshold: 0.99, MaxPerCluster: 1, Enabled: true})
	candidates := []*models.Candidate{candidate("A", "Household Income", 0.9)}
	out := f.Apply(candidates)
	require.Len(t, out, 1)
}

func TestApplyDisabledPassesThrough(t *testing.T) {
	f := New(config.SimilarityConfig{Enabled: false})
	candidates := []*models.Candidate{
		candidate("A", "Household Income", 0.9),
		candidate("B", "Household Incomes", 0.8),
	}
	out := f.Apply(candidates)
	require.Len(t, out, 2)
}

func TestApplyRespectsMaxPerClusterGreaterThanOne(t *testing.T) {
	f := New(config.SimilarityConfig{Threshold: 0.9, MaxPerCluster: 2, Enabled: true})
	candidates := []*models.Candidate{
		candidate("A", "Household Income", 0.9),
		candidate("B", "Household Incomes", 0.8),
		candidate("C", "Household Income Level", 0.7),
	}
	out := f.Apply(candidates)
	require.Len(t, out, 2)
}
