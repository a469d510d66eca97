package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_CarriesKindAndMessageWithNoCause(t *testing.T) {
	err := New(KindNotFound, "variable not found")
	assert.Equal(t, "variable not found", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap_MessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindCatalogLoadError, "catalog load failed", cause)
	assert.Equal(t, "catalog load failed: disk full", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestIs_MatchesOwnKindButNotFlattenedMessage(t *testing.T) {
	cause := errors.New("upstream down")
	err := Wrap(KindServiceUnavailable, "embedding provider unreachable", cause)
	wrapped := errors.New("outer context: " + err.Error())

	assert.True(t, Is(err, KindServiceUnavailable))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(wrapped, KindServiceUnavailable))
}

func TestIs_FalseForPlainErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain error"), KindInvalidQuery))
}

func TestKindOf_ExtractsKindOrEmptyString(t *testing.T) {
	err := New(KindTimeout, "took too long")
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("untyped")))
}

func TestSentinelErrors_CarryExpectedKinds(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{ErrInvalidQuery, KindInvalidQuery},
		{ErrInvalidSessionState, KindInvalidSessionState},
		{ErrNotFound, KindNotFound},
		{ErrTimeout, KindTimeout},
		{ErrServiceUnavailable, KindServiceUnavailable},
		{ErrCatalogLoadError, KindCatalogLoadError},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.err.Kind)
		assert.True(t, Is(c.err, c.kind))
	}
}

func TestError_RoundTripsThroughErrorsJoin(t *testing.T) {
	base := New(KindDegradedResult, "semantic path degraded")
	wrapped := errors.Join(base)

	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, KindDegradedResult, KindOf(wrapped))
}
