package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKindThroughWrapping(t *testing.T) {
	base := NotFound("order does not exist").WithOrder(42)
	wrapped := fmt.Errorf("failed to load order: %w", base)

	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))

	var e *Error
	assert.True(t, errors.As(wrapped, &e))
	assert.Equal(t, int64(42), e.OrderID)
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("supplier feed request failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "upstream_unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindMatchingViaErrorsIs(t *testing.T) {
	err := InvalidState("job already COMPLETED").WithJob(7)

	assert.True(t, errors.Is(err, InvalidState("")))
	assert.False(t, errors.Is(err, NotFound("")))
}
