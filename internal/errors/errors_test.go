package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{"network", ErrCodeEmbedderDown, CategoryNetwork, SeverityWarning, true},
		{"validation", ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeRetrievalFailed, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeEmbedderDown, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), ErrCodeEmbedderDown)
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeQueryEmpty, "empty", nil)
	b := New(ErrCodeQueryEmpty, "different message", nil)
	c := New(ErrCodeInvalidTopK, "bad topK", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeQueryEmpty, CodeOf(New(ErrCodeQueryEmpty, "x", nil)))
	assert.Equal(t, ErrCodeQueryEmpty, CodeOf(fmt.Errorf("wrapped: %w", New(ErrCodeQueryEmpty, "x", nil))))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsConfig(ConfigError("missing index dir", nil)))
	assert.True(t, IsValidation(ValidationError("bad input", nil)))
	assert.False(t, IsConfig(TotalRetrievalFailure(nil)))
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "timeout", nil)))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidTopK, "topK out of range", nil).
		WithDetail("top_k", "500").
		WithDetail("max", "50")

	assert.Equal(t, "500", err.Details["top_k"])
	assert.Equal(t, "50", err.Details["max"])
}
