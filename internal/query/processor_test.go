package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"audiencelens/internal/config"
	"audiencelens/internal/models"
)

func testConcepts() map[string]models.ConceptCategory {
	return map[string]models.ConceptCategory{
		"millennials": models.ConceptDemographic,
		"adults":      models.ConceptDemographic,
		"income":      models.ConceptFinancial,
		"urban":       models.ConceptGeographic,
	}
}

func TestProcessHappyPath(t *testing.T) {
	p := New(config.QueryConfig{NLPInitBudget: time.Second, SynonymExpansionK: 5}, nil, testConcepts(), nil)
	q := p.Process(context.Background(), "Millennials with high income")

	require.Contains(t, q.Normalized, "millennials")
	require.False(t, q.Degraded)
	require.ElementsMatch(t, []string{"demographic", "financial"}, q.ConceptCategories())
}

func TestProcessExtractsAgeRange(t *testing.T) {
	p := New(config.QueryConfig{NLPInitBudget: time.Second}, nil, testConcepts(), nil)
	q := p.Process(context.Background(), "adults 25-34 in urban areas")

	require.Len(t, q.NumericRanges, 1)
	require.Equal(t, 25.0, q.NumericRanges[0].Low)
	require.Equal(t, 34.0, q.NumericRanges[0].High)
}

func TestProcessDisabledNLPDegradesGracefully(t *testing.T) {
	p := New(config.QueryConfig{DisableNLP: true}, nil, testConcepts(), nil)
	q := p.Process(context.Background(), "adults 25-34")

	require.True(t, q.Degraded)
	require.Empty(t, q.Concepts)
	require.NotEmpty(t, q.Normalized)
}

func TestSpellCorrectFixesTypo(t *testing.T) {
	p := New(config.QueryConfig{SpellCorrectMaxEdit: 2}, []string{"millennials"}, nil, nil)
	corrected := p.spellCorrect("millenials with income")
	require.Contains(t, corrected, "millennials")
}

func TestSynonymExpansionRespectsK(t *testing.T) {
	syn := map[string][]string{"rich": {"wealthy", "affluent", "high-income", "prosperous", "moneyed", "loaded"}}
	p := New(config.QueryConfig{SynonymExpansionK: 2}, nil, nil, syn)
	exp := p.expandSynonyms("rich")
	require.Len(t, exp, 2)
}

func TestNeverBlocksIndefinitely(t *testing.T) {
	p := New(config.QueryConfig{NLPInitBudget: time.Millisecond}, nil, testConcepts(), nil)
	done := make(chan struct{})
	go func() {
		p.Process(context.Background(), "adults 25-34 in urban areas with high income")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Process blocked past its NLP budget")
	}
}
