package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/features/auth/token"
)

// Context keys set by RequireSession.
const (
	ContextUserID = "user_id"
	ContextWallet = "wallet"
)

// SessionValidator checks a raw session token.
type SessionValidator interface {
	Validate(raw string) (*token.Claims, error)
}

// RequireSession accepts the session token from the Authorization header or
// the session cookie and rejects the request when neither is valid.
func RequireSession(validator SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := SessionToken(c, cookieName)
		if raw == "" {
			abortWithError(c, errors.NewUnauthorizedError("session token required"))
			return
		}

		claims, err := validator.Validate(raw)
		if err != nil {
			abortWithError(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "Invalid session"))
			return
		}

		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextWallet, claims.Subject)
		c.Next()
	}
}

// UserID returns the signed-in user, empty outside RequireSession.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Wallet returns the signed-in wallet address.
func Wallet(c *gin.Context) string {
	return c.GetString(ContextWallet)
}

// SessionToken returns the raw token from the Authorization header or the
// session cookie, empty when neither is set.
func SessionToken(c *gin.Context, cookieName string) string {
	if raw := bearerToken(c.GetHeader("Authorization")); raw != "" {
		return raw
	}
	raw, _ := c.Cookie(cookieName)
	return raw
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortWithError(c *gin.Context, appErr *errors.AppError) {
	sendErrorResponse(c, appErr)
	c.Abort()
}
