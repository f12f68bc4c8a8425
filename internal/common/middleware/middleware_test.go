package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/features/auth/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(), HandleErrors())
	r.GET("/x", h...)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
		Error     struct {
			Code    errors.ErrorCode `json:"code"`
			Message string           `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return ErrorResponse{
		Success:   body.Success,
		RequestID: body.RequestID,
		Error:     &errors.AppError{Code: body.Error.Code, Message: body.Error.Message},
	}
}

func TestHandleErrors_StatusMapping(t *testing.T) {
	cases := []struct {
		code   errors.ErrorCode
		status int
	}{
		{errors.ErrCodeInvalidSignature, http.StatusUnauthorized},
		{errors.ErrCodeDomainMismatch, http.StatusUnauthorized},
		{errors.ErrCodeNonceExpired, http.StatusUnauthorized},
		{errors.ErrCodeInvalidMessage, http.StatusBadRequest},
		{errors.ErrCodeAuthUnavailable, http.StatusServiceUnavailable},
		{errors.ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{errors.ErrCodeNotOwner, http.StatusForbidden},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeDatabaseError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			r := newRouter(func(c *gin.Context) {
				_ = c.Error(errors.New(tc.code, "boom"))
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandleErrors_WrapsPlainErrors(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("plain"))
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decodeError(t, w).Error.Code)
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		panic("kaboom")
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decodeError(t, w).Error.Code)
}

func TestRequestID_Propagates(t *testing.T) {
	r := newRouter(func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func TestRequireSession(t *testing.T) {
	issuer := token.NewIssuer("secret", time.Hour, "user")
	raw, _, err := issuer.Issue("user-1", "0xabc")
	require.NoError(t, err)

	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "wallet": Wallet(c)})
	}
	r := newRouter(RequireSession(issuer, "sess"), handler)

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":"user-1","wallet":"0xabc"}`, w.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(&http.Cookie{Name: "sess", Value: raw})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errors.ErrCodeUnauthorized, decodeError(t, w).Error.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
