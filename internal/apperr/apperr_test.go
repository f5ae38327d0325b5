package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndWrap(t *testing.T) {
	err := New(NotFound, "account not found")
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, "account not found", DetailOf(err))
	assert.Equal(t, "account not found", err.Error())

	cause := errors.New("connection refused")
	wrapped := Wrap(UpstreamFailure, "agent unreachable", cause)
	assert.Equal(t, UpstreamFailure, KindOf(wrapped))
	assert.Equal(t, "agent unreachable", DetailOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestKindOfAndDetailOfFallBackForPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, Internal, KindOf(plain))
	assert.Equal(t, "boom", DetailOf(plain))
}

func TestKindOfUnwrapsThroughErrorsJoin(t *testing.T) {
	inner := New(Timeout, "agent request timed out")
	outer := errors.Join(inner)
	assert.Equal(t, Timeout, KindOf(outer))
}
