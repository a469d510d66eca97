package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinStub_DistributesEvenlyAcrossTargetCount(t *testing.T) {
	stub := RoundRobinStub{}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:     "sess-1",
		VariableCodes: []string{"A", "B", "C", "D"},
		TargetCount:   2,
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	total := 0
	for _, seg := range segments {
		total += seg.Size
		assert.Equal(t, len(seg.VariableIDs), seg.Size)
	}
	assert.Equal(t, 4, total)
}

func TestRoundRobinStub_DefaultsSegmentCountWhenUnspecified(t *testing.T) {
	stub := RoundRobinStub{}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:     "sess-2",
		VariableCodes: []string{"A", "B", "C", "D", "E", "F"},
	})
	require.NoError(t, err)
	assert.Len(t, segments, defaultSegmentCount)
}

func TestRoundRobinStub_ClampsTargetCountToVariableCount(t *testing.T) {
	stub := RoundRobinStub{}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:     "sess-3",
		VariableCodes: []string{"A", "B"},
		TargetCount:   10,
	})
	require.NoError(t, err)
	assert.Len(t, segments, 2)
}

func TestRoundRobinStub_NoVariablesYieldsNoSegments(t *testing.T) {
	stub := RoundRobinStub{}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:   "sess-4",
		TargetCount: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestRoundRobinStub_IDsAndLabelsAreDeterministic(t *testing.T) {
	stub := RoundRobinStub{}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:     "sess-5",
		VariableCodes: []string{"X", "Y"},
		TargetCount:   2,
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "sess-5-segment-0", segments[0].ID)
	assert.Equal(t, "Segment 1", segments[0].Label)
	assert.Equal(t, "sess-5-segment-1", segments[1].ID)
	assert.Equal(t, "Segment 2", segments[1].Label)
}

func TestRoundRobinStub_VariablesAreAccountedForExactlyOnce(t *testing.T) {
	stub := RoundRobinStub{}
	codes := []string{"V1", "V2", "V3", "V4", "V5"}

	segments, err := stub.Cluster(context.Background(), Request{
		SessionID:     "sess-6",
		VariableCodes: codes,
		TargetCount:   3,
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, seg := range segments {
		for _, code := range seg.VariableIDs {
			assert.False(t, seen[code], "code %s assigned to more than one segment", code)
			seen[code] = true
		}
	}
	assert.Len(t, seen, len(codes))
}
