package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/logger"
)

// ErrorHandler recovers panics into INTERNAL_ERROR responses.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := getRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithRequestID(requestID).
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		sendErrorResponse(c, appErr)
		c.Abort()
	})
}

// RequestID middleware
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := getRequestID(c)

	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)
	if appErr.UserID == "" {
		appErr.WithUserID(getUserID(c))
	}

	response := ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	}

	logError(appErr, c)

	c.JSON(HTTPStatus(appErr), response)
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeInvalidMessage:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized, errors.ErrCodeInvalidSignature,
		errors.ErrCodeDomainMismatch, errors.ErrCodeNonceExpired:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeNotOwner, errors.ErrCodeNotSquadMember:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeAuthUnavailable, errors.ErrCodeCacheError:
		return http.StatusServiceUnavailable
	case errors.ErrCodeUpstreamUnavailable, errors.ErrCodeStorageError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, c *gin.Context) {
	var event *zerolog.Event
	var msg string
	switch {
	case appErr.IsInternal():
		event, msg = logger.Error(), "Internal error occurred"
	case appErr.IsUnauthorized():
		event, msg = logger.Warn(), "Unauthorized access attempt"
	case appErr.IsValidation():
		event, msg = logger.Info(), "Validation error"
	case appErr.IsNotFound():
		event, msg = logger.Info(), "Resource not found"
	default:
		event, msg = logger.Error(), "Application error occurred"
	}

	event = event.
		Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)

	if appErr.UserID != "" {
		event = event.Str("user_id", appErr.UserID)
	}
	if len(appErr.Details) > 0 {
		event = event.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		event = event.Err(appErr.Cause)
	}
	event.Msg(msg)
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return "unknown"
}

func getUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// HandleErrors renders the last error a handler pushed with c.Error.
func HandleErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := errors.AsAppError(err); ok {
			sendErrorResponse(c, appErr)
			return
		}

		appErr := errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
		sendErrorResponse(c, appErr)
	}
}
