// Package resilience implements C9, the Fallback/Degradation layer that
// every external touchpoint (embedding provider, NLP model init, catalog
// and index file reads) is wrapped in: a hard timeout, a documented retry
// policy, a structured {ok, timeout, error(kind, message)} outcome, and a
// per-resource feature-disable flag that trips after cumulative failures.
//
// The circuit-breaking half of this uses gobreaker rather than a
// hand-rolled failure counter: a Guard is a thin façade over one
// gobreaker.CircuitBreaker per resource, configured from an
// F-failures-in-W-seconds budget.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"audiencelens/internal/config"
	"audiencelens/internal/errs"
	"audiencelens/internal/logging"
)

// Outcome is the structured result of one guarded call, logged with the
// request id at the call site.
type Outcome struct {
	OK      bool
	Timeout bool
	Kind    errs.Kind
	Message string
}

// Resource names one of the external touchpoints a Guard wraps, used only
// for logging and breaker naming.
type Resource string

const (
	ResourceEmbedding Resource = "embedding_provider"
	ResourceNLPInit   Resource = "nlp_init"
	ResourceFileRead  Resource = "file_read"
)

// Guard wraps calls to a single external resource with a timeout and a
// gobreaker circuit breaker that opens after cfg.FailureThreshold failures
// within cfg.FailureWindow, per §4.9. Once open, Disabled reports true for
// the remainder of the breaker's cooldown.
type Guard struct {
	resource Resource
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
}

// NewGuard constructs a Guard for resource, with timeout and the
// cumulative-failure budget from cfg.
func NewGuard(resource Resource, timeout time.Duration, cfg config.ResilienceConfig) *Guard {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	window := cfg.FailureWindow
	if window <= 0 {
		window = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        string(resource),
		Interval:    window,
		MaxRequests: 1, // a single trial request while half-open
		Timeout:     window,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.ResilienceWarn("resource %s: circuit breaker %s -> %s", name, from, to)
		},
	}

	return &Guard{
		resource: resource,
		timeout:  timeout,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

// Disabled reports whether the breaker is currently open, i.e. the feature
// should be treated as disabled for the remainder of the cooldown window.
func (g *Guard) Disabled() bool {
	return g.cb.State() == gobreaker.StateOpen
}

// Reset does nothing: gobreaker has no operation that closes a breaker from
// outside, so calling Reset leaves the breaker's state unchanged. An open
// breaker closes only after its cooldown, when a half-open trial call
// succeeds.
func (g *Guard) Reset() {
}

// Call runs fn under ctx with the guard's timeout, through the circuit
// breaker. fn is not invoked at all (and Outcome reports the breaker as
// open) when the resource has already failed past its cumulative budget.
// requestID is logged alongside the outcome for tracing.
func Call[T any](ctx context.Context, g *Guard, requestID string, fn func(context.Context) (T, error)) (T, Outcome) {
	var zero T

	if g.Disabled() {
		logging.Resilience("resource %s disabled (circuit open), req=%s", g.resource, requestID)
		return zero, Outcome{OK: false, Kind: errs.KindServiceUnavailable, Message: "resource disabled after repeated failures"}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.cb.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})

	if err == nil {
		return result.(T), Outcome{OK: true}
	}

	if callCtx.Err() == context.DeadlineExceeded {
		logging.ResilienceWarn("resource %s timed out after %v, req=%s", g.resource, g.timeout, requestID)
		return zero, Outcome{OK: false, Timeout: true, Kind: errs.KindTimeout, Message: err.Error()}
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		logging.ResilienceWarn("resource %s rejected (breaker %v), req=%s", g.resource, err, requestID)
		return zero, Outcome{OK: false, Kind: errs.KindServiceUnavailable, Message: err.Error()}
	}

	logging.ResilienceError("resource %s call failed, req=%s: %v", g.resource, requestID, err)
	return zero, Outcome{OK: false, Kind: errs.KindUpstreamFailure, Message: err.Error()}
}

// Set bundles the three Guards §4.9 names: embedding provider calls, NLP
// model init, and catalog/index file reads.
type Set struct {
	Embedding *Guard
	NLPInit   *Guard
	FileRead  *Guard
}

// NewSet builds a Set from the resilience configuration.
func NewSet(cfg config.ResilienceConfig) *Set {
	embeddingTimeout := cfg.EmbeddingTimeout
	if embeddingTimeout <= 0 {
		embeddingTimeout = 3 * time.Second
	}
	nlpTimeout := cfg.NLPInitTimeout
	if nlpTimeout <= 0 {
		nlpTimeout = 5 * time.Second
	}
	fileTimeout := cfg.FileReadTimeout
	if fileTimeout <= 0 {
		fileTimeout = 30 * time.Second
	}
	return &Set{
		Embedding: NewGuard(ResourceEmbedding, embeddingTimeout, cfg),
		NLPInit:   NewGuard(ResourceNLPInit, nlpTimeout, cfg),
		FileRead:  NewGuard(ResourceFileRead, fileTimeout, cfg),
	}
}
