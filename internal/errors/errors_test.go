package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2,
	}
}

func TestNewMatrixError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errcode   string
		code      ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "M_LIMIT_EXCEEDED", ErrMatrixRateLimit, true},
		{"limit errcode on 400", http.StatusBadRequest, "M_LIMIT_EXCEEDED", ErrMatrixRateLimit, true},
		{"server error", http.StatusBadGateway, "", ErrMatrixAPIFailed, true},
		{"forbidden", http.StatusForbidden, "M_FORBIDDEN", ErrMatrixAPIFailed, false},
		{"bad request", http.StatusBadRequest, "M_BAD_JSON", ErrMatrixAPIFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMatrixError("send", tt.status, tt.errcode, "boom")
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.Equal(t, tt.status, err.Context["status"])
			assert.Equal(t, tt.errcode, err.Context["errcode"])
		})
	}
}

func TestCodeOf_ThroughWrapping(t *testing.T) {
	inner := NewError(ErrStoreFailed, "insert failed")
	wrapped := fmt.Errorf("delivering: %w", inner)

	assert.Equal(t, ErrStoreFailed, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrStoreFailed))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
}

func TestRetryWithContext(t *testing.T) {
	t.Run("retries retryable errors until success", func(t *testing.T) {
		calls := 0
		err := RetryWithContext(context.Background(), func() error {
			calls++
			if calls < 3 {
				return NewMatrixError("send", http.StatusServiceUnavailable, "", "")
			}
			return nil
		}, fastRetry(3))
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		err := RetryWithContext(context.Background(), func() error {
			calls++
			return NewMatrixError("send", http.StatusForbidden, "M_FORBIDDEN", "")
		}, fastRetry(3))
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns the last error", func(t *testing.T) {
		calls := 0
		err := RetryWithContext(context.Background(), func() error {
			calls++
			return NewMatrixError("send", http.StatusBadGateway, "", fmt.Sprint(calls))
		}, fastRetry(2))
		assert.Equal(t, 2, calls)
		assert.Contains(t, err.(*AppError).Details, ": 2")
	})

	t.Run("honours rate limit delay", func(t *testing.T) {
		calls := 0
		start := time.Now()
		err := RetryWithContext(context.Background(), func() error {
			calls++
			if calls == 1 {
				return NewMatrixError("send", http.StatusTooManyRequests, "M_LIMIT_EXCEEDED", "").
					WithRetryAfter(50 * time.Millisecond)
			}
			return nil
		}, fastRetry(2))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("cancelled context is not retried", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := RetryWithContext(ctx, func() error {
			calls++
			return nil
		}, fastRetry(3))
		assert.Equal(t, 0, calls)
		assert.True(t, IsCode(err, ErrServiceUnavailable))
	})
}

func TestDefaultRetryCondition(t *testing.T) {
	assert.False(t, DefaultRetryCondition(nil))
	assert.False(t, DefaultRetryCondition(context.Canceled))
	assert.False(t, DefaultRetryCondition(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.True(t, DefaultRetryCondition(stderrors.New("dial tcp: connection refused")))
	assert.False(t, DefaultRetryCondition(stderrors.New("invalid character")))
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.RequiredField("matrix.homeserver_url", "")
	v.RequiredField("webhook.secret", "set")
	attrs := v.Nested("object_attributes")
	attrs.RequiredPositive("iid", 0)

	require.True(t, v.HasErrors())
	assert.Equal(t, []string{"matrix.homeserver_url", "object_attributes.iid"}, v.Fields())

	appErr := v.ToAppErrorWithCode(ErrDecodeFailed, "Invalid payload")
	assert.Equal(t, ErrDecodeFailed, appErr.Code)
	assert.Contains(t, appErr.Details, "object_attributes.iid")

	assert.Nil(t, NewValidator().ToAppError())
}

func TestPanicError(t *testing.T) {
	original := NewError(ErrRenderFailed, "bad template")
	assert.Same(t, original, PanicError(original))
	assert.Equal(t, ErrInternalServer, PanicError("boom").Code)
	assert.Equal(t, "boom", PanicError("boom").Message)
	assert.ErrorIs(t, PanicError(context.Canceled), context.Canceled)
	assert.Contains(t, PanicError(42).Message, "42")
}

func TestResponseBody(t *testing.T) {
	h := NewHandler()

	assert.Equal(t, "401: Unauthorized\nMissing auth token header\n",
		h.responseBody(NewError(ErrMissingAuthToken, "Missing auth token header")))
	assert.Equal(t, "406: Not Acceptable\n", h.responseBody(NewError(ErrUnsupportedMediaType, "")))

	internal := NewErrorWithCause(ErrInternalServer, "connection string leaked", stderrors.New("x"))
	assert.Equal(t, "500: Internal Server Error\n", h.responseBody(internal))
	assert.Equal(t, "500: Internal Server Error\nconnection string leaked\n",
		NewDevelopmentHandler().responseBody(internal))
}
