package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeOutOfScope, "no layer cleared its floor")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeOutOfScope, err.Code)
	assert.Equal(t, "[RTE_001] no layer cleared its floor", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeUnknownEndpoint, "endpoint %q not in catalog", "demographics")
	assert.Equal(t, `[RTE_002] endpoint "demographics" not in catalog`, err.Error())
}

func TestWithDetail(t *testing.T) {
	base := New(ErrCodeEndpointUnavailable, "call failed")
	withDetail := base.WithDetail("endpoint=competitive")

	assert.Empty(t, base.Detail, "receiver must not be mutated")
	assert.Equal(t, "endpoint=competitive", withDetail.Detail)
	assert.Contains(t, withDetail.Error(), "endpoint=competitive")

	var nilErr *AppError
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeInternal, "should vanish"))
	})

	t.Run("wraps and unwraps", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Wrap(cause, ErrCodeEndpointUnavailable, "demographic endpoint failed")
		require.NotNil(t, err)
		assert.Equal(t, ErrCodeEndpointUnavailable, err.Code)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("preserves code when wrapping with CodeUnknown", func(t *testing.T) {
		inner := New(ErrCodeMergeKeyMismatch, "no shared keys")
		outer := Wrap(inner, CodeUnknown, "pipeline failed")
		assert.Equal(t, ErrCodeMergeKeyMismatch, outer.Code)
	})
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeOutOfScope, "rejected")
	wrapped := fmt.Errorf("request aborted: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeOutOfScope))
	assert.False(t, IsCode(wrapped, ErrCodeAllEndpointsFailed))
	assert.False(t, IsCode(nil, ErrCodeOutOfScope))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeOutOfScope))
}

func TestTypedPredicates(t *testing.T) {
	assert.True(t, IsOutOfScope(New(ErrCodeOutOfScope, "x")))
	assert.True(t, IsMergeKeyMismatch(New(ErrCodeMergeKeyMismatch, "x")))
	assert.True(t, IsAllEndpointsFailed(New(ErrCodeAllEndpointsFailed, "x")))
	assert.False(t, IsOutOfScope(New(ErrCodeInternal, "x")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeCacheBuildFailed, GetCode(New(ErrCodeCacheBuildFailed, "x")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeOutOfScope, http.StatusUnprocessableEntity},
		{ErrCodeAllEndpointsFailed, http.StatusBadGateway},
		{ErrCodeEmptyQuery, http.StatusBadRequest},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}
