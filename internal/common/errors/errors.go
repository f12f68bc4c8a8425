package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies the kind of failure returned to clients.
type ErrorCode string

const (
	// Generic
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	// Sign-in
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	ErrCodeDomainMismatch   ErrorCode = "DOMAIN_MISMATCH"
	ErrCodeNonceExpired     ErrorCode = "NONCE_EXPIRED"
	ErrCodeInvalidMessage   ErrorCode = "INVALID_MESSAGE"
	ErrCodeAuthUnavailable  ErrorCode = "AUTH_UNAVAILABLE"

	// Squads and personas
	ErrCodeNotSquadMember ErrorCode = "NOT_SQUAD_MEMBER"
	ErrCodeNotOwner       ErrorCode = "NOT_OWNER"

	// Infrastructure
	ErrCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
	ErrCodeCacheError          ErrorCode = "CACHE_ERROR"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeStorageError        ErrorCode = "STORAGE_ERROR"
)

// AppError is a typed application error rendered by the error middleware.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeBadRequest || e.Code == ErrCodeInvalidMessage
}

// IsUnauthorized reports access failures, including rejected sign-ins.
func (e *AppError) IsUnauthorized() bool {
	switch e.Code {
	case ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeInvalidSignature,
		ErrCodeDomainMismatch, ErrCodeNonceExpired, ErrCodeNotSquadMember, ErrCodeNotOwner:
		return true
	}
	return false
}

func (e *AppError) IsInternal() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeDatabaseError, ErrCodeCacheError, ErrCodeStorageError,
		ErrCodeUpstreamUnavailable, ErrCodeAuthUnavailable:
		return true
	}
	return false
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID string) *AppError {
	e.UserID = userID
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewUpstreamError(service string, err error) *AppError {
	return Wrap(err, ErrCodeUpstreamUnavailable, fmt.Sprintf("Upstream service unavailable: %s", service)).
		WithDetail("service", service)
}

// AsAppError finds an AppError anywhere in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
