package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencelens/internal/config"
)

func TestRouter_Determinism(t *testing.T) {
	r := New(config.RouterConfig{UseUnified: false, RolloutPercentage: 50})

	first := r.Route("user-42")
	for i := 0; i < 10; i++ {
		again := r.Route("user-42")
		require.Equal(t, first.Pipeline, again.Pipeline)
		require.Equal(t, first.Bucket, again.Bucket)
	}
}

func TestRouter_UseUnifiedOverridesRollout(t *testing.T) {
	r := New(config.RouterConfig{UseUnified: true, RolloutPercentage: 0})
	d := r.Route("anyone")
	assert.Equal(t, PipelineUnified, d.Pipeline)
}

func TestRouter_ZeroPercentRollout(t *testing.T) {
	r := New(config.RouterConfig{UseUnified: false, RolloutPercentage: 0})
	for i := 0; i < 50; i++ {
		d := r.Route(fmt.Sprintf("user-%d", i))
		assert.Equal(t, PipelineLegacy, d.Pipeline)
	}
}

func TestRouter_HundredPercentRollout(t *testing.T) {
	r := New(config.RouterConfig{UseUnified: false, RolloutPercentage: 100})
	for i := 0; i < 50; i++ {
		d := r.Route(fmt.Sprintf("user-%d", i))
		assert.Equal(t, PipelineUnified, d.Pipeline)
	}
}

// TestRouter_AggregateShareNear50 is S5: 1000 distinct user_ids at a 50%
// rollout should land within +/-5% of a 50/50 split.
func TestRouter_AggregateShareNear50(t *testing.T) {
	r := New(config.RouterConfig{UseUnified: false, RolloutPercentage: 50})

	unified := 0
	const n = 1000
	for i := 0; i < n; i++ {
		d := r.Route(fmt.Sprintf("user-%d", i))
		if d.Pipeline == PipelineUnified {
			unified++
		}
	}
	share := float64(unified) / float64(n)
	assert.InDelta(t, 0.5, share, 0.05)
}

func TestRouter_SetRolloutPercentageClamped(t *testing.T) {
	r := New(config.RouterConfig{})
	r.SetRolloutPercentage(500)
	assert.Equal(t, 100, r.Status().RolloutPercentage)
	r.SetRolloutPercentage(-10)
	assert.Equal(t, 0, r.Status().RolloutPercentage)
}
