// Package router implements the Search Router (C8): a deterministic A/B
// rollout gate between the legacy and unified retrieval pipelines. The
// decision for a given user is a pure function of (global override,
// rollout percentage, user_id) so that repeated calls with the same
// configuration always agree: a deterministic percentage-based rollout
// gate hashing the user identifier with hash/fnv.
package router

import (
	"hash/fnv"
	"sync/atomic"

	"audiencelens/internal/config"
	"audiencelens/internal/logging"
)

// Pipeline names the retrieval path a decision selects.
type Pipeline string

const (
	PipelineLegacy  Pipeline = "legacy"
	PipelineUnified Pipeline = "unified"
)

// Decision is the outcome of one routing evaluation, returned verbatim by
// both /migration/status and /migration/test (§6).
type Decision struct {
	UserID            string   `json:"user_id"`
	Pipeline          Pipeline `json:"pipeline"`
	UseUnified        bool     `json:"use_unified_global"`
	RolloutPercentage int      `json:"rollout_percentage"`
	Bucket            int      `json:"bucket"` // stable_hash(user_id) mod 100
}

// Router holds the current rollout configuration. UseUnified and
// RolloutPercentage are stored as atomics so an operator-triggered config
// change is visible to in-flight requests without a lock, mirroring the
// feature-disable flags' compare-and-swap discipline elsewhere in the
// module (§5 "Feature-disable flags: shared mutable; updates are CAS").
type Router struct {
	useUnified atomic.Bool
	rollout    atomic.Int64
}

// New constructs a Router from the boot-time configuration.
func New(cfg config.RouterConfig) *Router {
	r := &Router{}
	r.useUnified.Store(cfg.UseUnified)
	r.rollout.Store(int64(clamp(cfg.RolloutPercentage, 0, 100)))
	return r
}

// SetUseUnified updates the global override flag.
func (r *Router) SetUseUnified(v bool) {
	r.useUnified.Store(v)
}

// SetRolloutPercentage updates the gradual-rollout percentage, clamped to
// [0, 100].
func (r *Router) SetRolloutPercentage(pct int) {
	r.rollout.Store(int64(clamp(pct, 0, 100)))
}

// Route decides which pipeline userID should use under the router's current
// configuration: use_unified OR (stable_hash(user_id) mod 100) <
// rollout_percentage. The same user always receives the same decision for a
// fixed configuration (stable_hash is a pure function of the string).
func (r *Router) Route(userID string) Decision {
	useUnified := r.useUnified.Load()
	pct := int(r.rollout.Load())
	bucket := stableHash(userID) % 100

	unified := useUnified || bucket < pct
	d := Decision{
		UserID:            userID,
		UseUnified:        useUnified,
		RolloutPercentage: pct,
		Bucket:            bucket,
	}
	if unified {
		d.Pipeline = PipelineUnified
	} else {
		d.Pipeline = PipelineLegacy
	}

	logging.RouterDebug("route decision for user %q: pipeline=%s bucket=%d pct=%d use_unified=%v",
		userID, d.Pipeline, bucket, pct, useUnified)
	return d
}

// Status returns the router's current configuration, the payload for
// GET /api/search/migration/status.
func (r *Router) Status() Decision {
	return Decision{
		UseUnified:        r.useUnified.Load(),
		RolloutPercentage: int(r.rollout.Load()),
	}
}

// stableHash hashes userID with FNV-1a 32-bit, a pure, deterministic,
// process-independent function so the same user_id always produces the
// same bucket regardless of which worker evaluates it.
func stableHash(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() & 0x7fffffff)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
