package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"audiencelens/internal/config"
	"audiencelens/internal/errs"
	"audiencelens/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T) *Manager {
	m := New(config.SessionConfig{TTL: time.Hour})
	t.Cleanup(m.Close)
	return m
}

func TestFullHappyPathWorkflow(t *testing.T) {
	// S4 — create -> selectDataType -> submitQuery -> confirmVariables ->
	// refineQuery -> confirmVariables -> computeSegments.
	m := newTestManager(t)
	s := m.Create("user-1")
	require.Equal(t, models.StateAwaitingDataType, s.State)

	s, err := m.SetDataType(s.ID, models.DataTypeSelection{Kind: "first-party", SubSource: "RampID"})
	require.NoError(t, err)
	require.Equal(t, models.StateAwaitingQuery, s.State)

	s, merged, err := m.RefineQuery(context.Background(), s.ID, "urban millennials")
	require.NoError(t, err)
	require.Equal(t, "urban millennials", merged)
	require.Equal(t, models.StateCandidatesPresented, s.State)

	require.NoError(t, m.StoreCandidates(s.ID, []string{"AGE_25_34", "URBAN_DWELLER"}))

	s, err = m.ConfirmVariables(s.ID, []string{"AGE_25_34"})
	require.NoError(t, err)
	require.Equal(t, models.StateVariablesConfirmed, s.State)
	require.Equal(t, []string{"AGE_25_34"}, s.ConfirmedVariables)

	s, merged, err = m.RefineQuery(context.Background(), s.ID, "urban millennials in Toronto")
	require.NoError(t, err)
	require.Contains(t, merged, "AGE_25_34")
	require.Equal(t, models.StateCandidatesPresented, s.State)

	require.NoError(t, m.StoreCandidates(s.ID, []string{"URBAN_DWELLER", "AGE_25_34"}))
	s, err = m.ConfirmVariables(s.ID, []string{"URBAN_DWELLER"})
	require.NoError(t, err)
	require.Equal(t, models.StateVariablesConfirmed, s.State)
	require.ElementsMatch(t, []string{"AGE_25_34", "URBAN_DWELLER"}, s.ConfirmedVariables)

	s, err = m.ComputeSegments(context.Background(), s.ID, func(ctx context.Context, confirmed []string) ([]models.Segment, error) {
		return []models.Segment{{ID: "seg-1", VariableIDs: confirmed}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, models.StateSegmentsComputed, s.State)

	_, err = m.SetDataType(s.ID, models.DataTypeSelection{Kind: "third-party"})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidSessionState, errs.KindOf(err))
}

func TestConfirmVariables_RejectsCodesOutsideCandidatesOrConfirmed(t *testing.T) {
	m := newTestManager(t)
	s := m.Create("user-2")
	_, err := m.SetDataType(s.ID, models.DataTypeSelection{Kind: "first-party"})
	require.NoError(t, err)
	_, _, err = m.RefineQuery(context.Background(), s.ID, "income over 100k")
	require.NoError(t, err)
	require.NoError(t, m.StoreCandidates(s.ID, []string{"INCOME_HIGH"}))

	_, err = m.ConfirmVariables(s.ID, []string{"SOMETHING_NEVER_SHOWN"})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidQuery, errs.KindOf(err))
}

func TestCancel_FromAnyNonTerminalState(t *testing.T) {
	m := newTestManager(t)
	s := m.Create("user-3")
	s, err := m.Cancel(s.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateTerminal, s.State)

	_, err = m.Cancel(s.ID)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidSessionState, errs.KindOf(err))
}

func TestTransition_IllegalEventLeavesStateUnchanged(t *testing.T) {
	m := newTestManager(t)
	s := m.Create("user-4")
	_, err := m.Transition(s.ID, "confirm_variables")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidSessionState, errs.KindOf(err))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingDataType, got.State)
}

func TestGet_UnknownSessionReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Get("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestEvictExpired_RemovesIdleSessions(t *testing.T) {
	m := New(config.SessionConfig{TTL: 20 * time.Millisecond})
	defer m.Close()

	s := m.Create("user-5")
	require.Equal(t, 1, m.Count())

	time.Sleep(120 * time.Millisecond)
	m.evictExpired()
	assert.Equal(t, 0, m.Count())

	_, err := m.Get(s.ID)
	require.Error(t, err)
}
