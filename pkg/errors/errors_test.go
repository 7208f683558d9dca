package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorIs(t *testing.T) {
	err := NewConfigError("dedupe", "unknown strategy \"phonetic\"", nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "dedupe")
	assert.Contains(t, err.Error(), "phonetic")
}

func TestAPIErrorIs(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		target     error
		want       bool
	}{
		{"rate limited", 429, ErrRateLimited, true},
		{"server error", 503, ErrSourceUnavailable, true},
		{"client error not rate limited", 404, ErrRateLimited, false},
		{"server error not rate limited", 500, ErrRateLimited, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError("registry", tt.statusCode, "upstream failure")
			assert.Equal(t, tt.want, errors.Is(err, tt.target))
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &APIError{Source: "detail", Message: "fetch failed", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestIdentifierMismatchError(t *testing.T) {
	err := &IdentifierMismatchError{Primary: "12345678901", Detail: "10987654321"}
	assert.True(t, IsContract(err))
	assert.Contains(t, err.Error(), "12345678901")
}

func TestWrappedSentinels(t *testing.T) {
	err := fmt.Errorf("fetching page 3: %w", ErrRateLimited)
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsTimeout(err))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("taxpayer_id", "12", "must be 9-11 digits")
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "taxpayer_id")
}
