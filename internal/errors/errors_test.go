package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		message      string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{
			name:         "config error",
			code:         ErrCodeConfigInvalid,
			message:      "bad fusion weight",
			wantCategory: CategoryConfig,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
		{
			name:         "corrupt index is fatal",
			code:         ErrCodeCorruptIndex,
			message:      "metadata sidecar truncated",
			wantCategory: CategoryIO,
			wantSeverity: SeverityFatal,
			wantRetry:    false,
		},
		{
			name:         "inconsistent index is fatal",
			code:         ErrCodeInconsistentIndex,
			message:      "vector count != passage count",
			wantCategory: CategoryIO,
			wantSeverity: SeverityFatal,
			wantRetry:    false,
		},
		{
			name:         "network timeout is retryable",
			code:         ErrCodeNetworkTimeout,
			message:      "embedding backend timed out",
			wantCategory: CategoryNetwork,
			wantSeverity: SeverityWarning,
			wantRetry:    true,
		},
		{
			name:         "validation error",
			code:         ErrCodeInvalidPassage,
			message:      "passage missing source",
			wantCategory: CategoryValidation,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
		{
			name:         "rerank failure is internal",
			code:         ErrCodeRerankFailed,
			message:      "scorer returned short vector",
			wantCategory: CategoryInternal,
			wantSeverity: SeverityError,
			wantRetry:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetry, err.Retryable)
		})
	}
}

func TestErrorString(t *testing.T) {
	err := New(ErrCodeIndexUnavailable, "no index loaded", nil)
	assert.Equal(t, "[ERR_504_INDEX_UNAVAILABLE] no index loaded", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wraps cause", func(t *testing.T) {
		cause := stderrors.New("disk read failed")
		err := Wrap(ErrCodeCorruptIndex, cause)

		require.NotNil(t, err)
		assert.Equal(t, "disk read failed", err.Message)
		assert.Equal(t, cause, err.Cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil cause returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(ErrCodeInternal, nil))
	})
}

func TestIsByCode(t *testing.T) {
	err := IndexUnavailable("search before index")

	// Same code matches, different code does not.
	assert.True(t, stderrors.Is(err, New(ErrCodeIndexUnavailable, "other message", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeEmbeddingFailed, "other message", nil)))
}

func TestIsCodeThroughChain(t *testing.T) {
	inner := EmbeddingFailure("ollama unreachable", stderrors.New("connection refused"))
	outer := fmt.Errorf("dense recall: %w", inner)

	assert.True(t, IsCode(outer, ErrCodeEmbeddingFailed))
	assert.False(t, IsCode(outer, ErrCodeRerankFailed))
	assert.Equal(t, ErrCodeEmbeddingFailed, GetCode(outer))
	assert.Equal(t, CategoryInternal, GetCategory(outer))
}

func TestConstructors(t *testing.T) {
	t.Run("IndexUnavailable carries suggestion", func(t *testing.T) {
		err := IndexUnavailable("nothing indexed")
		assert.Equal(t, ErrCodeIndexUnavailable, err.Code)
		assert.NotEmpty(t, err.Suggestion)
	})

	t.Run("InconsistentState is fatal", func(t *testing.T) {
		err := InconsistentState("counts disagree")
		assert.Equal(t, ErrCodeInconsistentIndex, err.Code)
		assert.True(t, IsFatal(err))
	})

	t.Run("RerankFailure preserves cause", func(t *testing.T) {
		cause := stderrors.New("model crashed")
		err := RerankFailure("pairwise scoring failed", cause)
		assert.Equal(t, ErrCodeRerankFailed, err.Code)
		assert.ErrorIs(t, err, cause)
	})
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "expected 256 got 384", nil).
		WithDetail("expected", "256").
		WithDetail("actual", "384")

	assert.Equal(t, "256", err.Details["expected"])
	assert.Equal(t, "384", err.Details["actual"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkUnavailable, "down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInternal, "bug", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestFormatForCLI(t *testing.T) {
	t.Run("sift error includes hint and code", func(t *testing.T) {
		out := FormatForCLI(IndexUnavailable("nothing indexed"))
		assert.Contains(t, out, "Error: nothing indexed")
		assert.Contains(t, out, "Hint:")
		assert.Contains(t, out, "ERR_504_INDEX_UNAVAILABLE")
	})

	t.Run("plain error is wrapped as internal", func(t *testing.T) {
		out := FormatForCLI(stderrors.New("boom"))
		assert.Contains(t, out, "boom")
		assert.Contains(t, out, ErrCodeInternal)
	})

	t.Run("nil returns empty", func(t *testing.T) {
		assert.Empty(t, FormatForCLI(nil))
	})
}

func TestFormatForLog(t *testing.T) {
	err := EmbeddingFailure("backend down", stderrors.New("dial tcp")).
		WithDetail("model", "nomic-embed-text")

	fields := FormatForLog(err)
	assert.Equal(t, ErrCodeEmbeddingFailed, fields["error_code"])
	assert.Equal(t, "dial tcp", fields["cause"])
	assert.Equal(t, "nomic-embed-text", fields["detail_model"])
}
