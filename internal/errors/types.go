package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a specific error type for categorization and logging
type ErrorCode string

const (
	// Webhook request rejections
	ErrMissingAuthToken     ErrorCode = "MISSING_AUTH_TOKEN"
	ErrInvalidAuthToken     ErrorCode = "INVALID_AUTH_TOKEN"
	ErrUnknownEventType     ErrorCode = "UNKNOWN_EVENT_TYPE"
	ErrMissingRoom          ErrorCode = "MISSING_ROOM"
	ErrMissingBody          ErrorCode = "MISSING_BODY"
	ErrRoomNotJoined        ErrorCode = "ROOM_NOT_JOINED"
	ErrUnsupportedMediaType ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	ErrInvalidJSON          ErrorCode = "INVALID_JSON"

	// Validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Background processing errors
	ErrDecodeFailed   ErrorCode = "DECODE_FAILED"
	ErrRenderFailed   ErrorCode = "RENDER_FAILED"
	ErrDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// External service errors
	ErrMatrixAPIFailed  ErrorCode = "MATRIX_API_FAILED"
	ErrMatrixRateLimit  ErrorCode = "MATRIX_RATE_LIMIT"
	ErrMatrixTimeout    ErrorCode = "MATRIX_TIMEOUT"
	ErrGitLabAPIFailed  ErrorCode = "GITLAB_API_FAILED"
	ErrStoreFailed      ErrorCode = "STORE_FAILED"
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// System errors
	ErrConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// RetryPolicy defines whether an error is retryable and retry configuration
type RetryPolicy struct {
	Retryable     bool          `json:"retryable"`
	MaxRetries    int           `json:"max_retries,omitempty"`
	BackoffDelay  time.Duration `json:"backoff_delay,omitempty"`
	ExponentialBO bool          `json:"exponential_backoff,omitempty"`
}

// AppError represents a structured application error with rich context
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Severity   ErrorSeverity          `json:"severity"`
	HTTPStatus int                    `json:"http_status"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Retry      RetryPolicy            `json:"retry_policy"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for Go 1.13+ error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds contextual information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRoomContext adds the delivery target and hook name to the error
func (e *AppError) WithRoomContext(roomID, eventType string) *AppError {
	return e.WithContext("room_id", roomID).WithContext("event_type", eventType)
}

// WithRetryAfter marks the error retryable after the given delay
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.Retry.Retryable = true
	e.Retry.BackoffDelay = d
	return e
}

// IsRetryable returns whether this error should be retried
func (e *AppError) IsRetryable() bool {
	return e.Retry.Retryable
}

// NewError creates a new AppError with the given code and message
func NewError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Severity:   getDefaultSeverity(code),
		HTTPStatus: getDefaultHTTPStatus(code),
		Timestamp:  time.Now(),
		Retry:      getDefaultRetryPolicy(code),
	}
}

// NewErrorWithCause creates a new AppError wrapping an existing error
func NewErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	e := NewError(code, message)
	e.Cause = cause
	return e
}

// NewValidationError creates a validation error with details
func NewValidationError(field, reason string) *AppError {
	return &AppError{
		Code:       ErrValidationFailed,
		Message:    fmt.Sprintf("Validation failed for field '%s'", field),
		Details:    reason,
		Severity:   SeverityLow,
		HTTPStatus: http.StatusBadRequest,
		Timestamp:  time.Now(),
		Retry:      RetryPolicy{Retryable: false},
	}
}

// NewMatrixError creates a homeserver API error from a response status and errcode
func NewMatrixError(operation string, statusCode int, errcode, message string) *AppError {
	code := ErrMatrixAPIFailed
	severity := SeverityMedium
	retryable := false

	switch {
	case statusCode == http.StatusTooManyRequests || errcode == "M_LIMIT_EXCEEDED":
		code = ErrMatrixRateLimit
		retryable = true
	case statusCode >= 500:
		severity = SeverityHigh
		retryable = true
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		severity = SeverityHigh
	}

	e := &AppError{
		Code:       code,
		Message:    fmt.Sprintf("Matrix %s failed", operation),
		Details:    fmt.Sprintf("HTTP %d %s: %s", statusCode, errcode, message),
		Severity:   severity,
		HTTPStatus: http.StatusBadGateway,
		Timestamp:  time.Now(),
		Retry: RetryPolicy{
			Retryable:     retryable,
			MaxRetries:    3,
			BackoffDelay:  500 * time.Millisecond,
			ExponentialBO: true,
		},
	}
	return e.WithContext("status", statusCode).WithContext("errcode", errcode)
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func getDefaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrUnknownEventType, ErrMissingRoom, ErrMissingBody, ErrInvalidInput, ErrValidationFailed:
		return http.StatusBadRequest
	case ErrMissingAuthToken, ErrInvalidAuthToken:
		return http.StatusUnauthorized
	case ErrRoomNotJoined:
		return http.StatusForbidden
	case ErrUnsupportedMediaType, ErrInvalidJSON:
		return http.StatusNotAcceptable
	case ErrMatrixAPIFailed, ErrMatrixRateLimit, ErrMatrixTimeout, ErrGitLabAPIFailed:
		return http.StatusBadGateway
	case ErrServiceUnavailable, ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func getDefaultSeverity(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrMissingAuthToken, ErrInvalidAuthToken, ErrUnknownEventType, ErrMissingRoom,
		ErrMissingBody, ErrRoomNotJoined, ErrUnsupportedMediaType, ErrInvalidJSON:
		return SeverityLow
	case ErrStoreFailed, ErrStoreUnavailable, ErrConfigurationError, ErrInternalServer:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func getDefaultRetryPolicy(code ErrorCode) RetryPolicy {
	switch code {
	case ErrMatrixTimeout, ErrMatrixRateLimit:
		return RetryPolicy{
			Retryable:     true,
			MaxRetries:    3,
			BackoffDelay:  time.Millisecond * 500,
			ExponentialBO: true,
		}
	case ErrStoreUnavailable:
		return RetryPolicy{
			Retryable:    true,
			MaxRetries:   2,
			BackoffDelay: time.Second,
		}
	default:
		return RetryPolicy{Retryable: false}
	}
}
