package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "failed to load organization")

	require.Error(t, err)
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load organization: connection refused", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("enroll: %w", New(CodeConflict, "leaf index already allocated"))
	assert.True(t, Is(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:    http.StatusNotFound,
		CodeValidation:  http.StatusBadRequest,
		CodeConflict:    http.StatusConflict,
		CodeRateLimited: http.StatusTooManyRequests,
		CodeUnavailable: http.StatusServiceUnavailable,
		CodeInternal:    http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
