package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"go.uber.org/zap"
)

// Handler provides centralized error handling for HTTP responses.
//
// Responses use the plain-text contract webhook senders expect:
//
//	<status>: <reason>
//	<message>
type Handler struct {
	// Include causes of 5xx errors in responses (dev mode)
	IncludeSensitiveDetails bool
	// Log client errors too, not just server errors
	LogAllErrors bool
}

// NewHandler creates a new error handler with default configuration
func NewHandler() *Handler {
	return &Handler{
		IncludeSensitiveDetails: false,
		LogAllErrors:            true,
	}
}

// NewDevelopmentHandler creates an error handler for development with more verbose output
func NewDevelopmentHandler() *Handler {
	return &Handler{
		IncludeSensitiveDetails: true,
		LogAllErrors:            true,
	}
}

// HandleError processes an error and writes the HTTP response
func (h *Handler) HandleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	appErr := h.toAppError(err)

	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = c.Get("X-Gitlab-Event-UUID")
	}

	if h.LogAllErrors || appErr.HTTPStatus >= 500 {
		h.logError(appErr, requestID, c)
	}

	if appErr.HTTPStatus == http.StatusNotAcceptable {
		c.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	}
	if appErr.IsRetryable() && appErr.HTTPStatus >= 500 {
		c.Set(fiber.HeaderRetryAfter, "30")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(appErr.HTTPStatus).SendString(h.responseBody(appErr))
}

// responseBody formats the plain-text body for an error
func (h *Handler) responseBody(appErr *AppError) string {
	body := fmt.Sprintf("%d: %s\n", appErr.HTTPStatus, http.StatusText(appErr.HTTPStatus))
	message := appErr.Message
	if appErr.HTTPStatus >= 500 && !h.IncludeSensitiveDetails {
		message = safeMessage(appErr)
	}
	if message != "" {
		body += message + "\n"
	}
	return body
}

func safeMessage(appErr *AppError) string {
	switch appErr.Code {
	case ErrServiceUnavailable:
		return appErr.Message
	case ErrStoreFailed, ErrStoreUnavailable:
		return "Storage temporarily unavailable"
	case ErrConfigurationError:
		return "Service configuration error"
	default:
		return ""
	}
}

// toAppError converts any error to an AppError
func (h *Handler) toAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		e := NewErrorWithCause(ErrInvalidInput, fiberErr.Message, err)
		e.HTTPStatus = fiberErr.Code
		if fiberErr.Code >= 500 {
			e.Code = ErrInternalServer
			e.Severity = SeverityHigh
		}
		return e
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "timeout"):
		return NewErrorWithCause(ErrServiceUnavailable, "Request timeout", err)
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return NewErrorWithCause(ErrServiceUnavailable, "Service unavailable", err)
	default:
		return NewErrorWithCause(ErrInternalServer, "Internal server error", err)
	}
}

// logError logs the error with appropriate context and level
func (h *Handler) logError(appErr *AppError, requestID string, c *fiber.Ctx) {
	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("severity", string(appErr.Severity)),
		zap.Int("http_status", appErr.HTTPStatus),
	}

	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if c != nil {
		fields = append(fields,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("remote_ip", c.IP()),
		)
	}

	for key, value := range appErr.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}

	LogAppError(appErr, fields...)
}

// LogAppError logs an AppError at the level matching its severity
func LogAppError(appErr *AppError, fields ...zap.Field) {
	args := toInterfaceSlice(fields)
	message := appErr.Message
	if message == "" {
		message = string(appErr.Code)
	}
	switch appErr.Severity {
	case SeverityLow:
		logging.Info(message, args...)
	case SeverityMedium:
		logging.Warn(message, args...)
	default:
		logging.Error(message, args...)
	}
}

// FiberErrorHandler creates a Fiber-compatible error handler
func (h *Handler) FiberErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return h.HandleError(c, err)
	}
}

// toInterfaceSlice converts zap.Field slice to interface{} slice
func toInterfaceSlice(fields []zap.Field) []interface{} {
	result := make([]interface{}, len(fields))
	for i, field := range fields {
		result[i] = field
	}
	return result
}

// PanicError converts a recovered panic value into an AppError
func PanicError(r interface{}) *AppError {
	switch v := r.(type) {
	case *AppError:
		return v
	case error:
		return NewErrorWithCause(ErrInternalServer, "Panic recovered", v)
	case string:
		return NewError(ErrInternalServer, v)
	default:
		return NewError(ErrInternalServer, fmt.Sprintf("Unknown panic occurred: %v", v))
	}
}
