package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/auth/models"
	"flashsquad-backend/internal/features/auth/service"
)

type CookieOptions struct {
	SessionName string
	NonceName   string
	Secure      bool
	SessionTTL  time.Duration
	NonceTTL    time.Duration
}

type AuthHandler struct {
	service service.AuthService
	cookies CookieOptions
}

func NewAuthHandler(service service.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// RegisterRoutes mounts the public sign-in endpoints.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.GET("/nonce", h.nonce)
		auth.POST("/signin", h.signIn)
		auth.GET("/session", h.session)
		auth.POST("/signout", h.signOut)
	}
}

// @Summary Issue a sign-in nonce
// @Description One-time nonce to embed in the SIWE message. Also set as an HttpOnly cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} models.NonceResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /auth/nonce [get]
func (h *AuthHandler) nonce(c *gin.Context) {
	resp, err := h.service.Nonce(c.Request.Context())
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	h.setCookie(c, h.cookies.NonceName, resp.Nonce, h.cookies.NonceTTL)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

// @Summary Sign in with Ethereum
// @Description Verifies the signed message, syncs NFT holdings into squads and returns a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body models.SignInRequest true "Signed message"
// @Success 200 {object} models.Session
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) signIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	issued, _ := c.Cookie(h.cookies.NonceName)
	// The nonce is spent whatever the outcome.
	h.clearCookie(c, h.cookies.NonceName)

	sess, err := h.service.SignIn(c.Request.Context(), req, issued)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}

	h.setCookie(c, h.cookies.SessionName, sess.Token, h.cookies.SessionTTL)
	c.JSON(http.StatusOK, sess)
}

// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} models.SessionInfo
// @Router /auth/session [get]
func (h *AuthHandler) session(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Session(middleware.SessionToken(c, h.cookies.SessionName)))
}

// @Summary Sign out
// @Tags auth
// @Success 204
// @Router /auth/signout [post]
func (h *AuthHandler) signOut(c *gin.Context) {
	h.clearCookie(c, h.cookies.SessionName)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.cookies.Secure, true)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidMessage):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidMessage,
			"The sign-in message is malformed. Please try signing in again.")
	case errors.Is(err, service.ErrDomainMismatch):
		return apperrors.Wrap(err, apperrors.ErrCodeDomainMismatch,
			"This sign-in request was created for another site. Please sign in from this page.")
	case errors.Is(err, service.ErrNonceExpired):
		return apperrors.Wrap(err, apperrors.ErrCodeNonceExpired,
			"Your sign-in request expired. Please sign in again.")
	case errors.Is(err, service.ErrInvalidSignature):
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidSignature,
			"The signature does not match your wallet. Please sign in again.")
	case errors.Is(err, service.ErrAuthUnavailable):
		return apperrors.Wrap(err, apperrors.ErrCodeAuthUnavailable,
			"Sign-in is temporarily unavailable. Please try again shortly.")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Sign-in failed")
	}
}
