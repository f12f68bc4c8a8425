package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/user/models"
	"flashsquad-backend/internal/features/user/service"
)

type stubService struct {
	users map[string]*models.UserResponse
}

func (s *stubService) Reconcile(ctx context.Context, address string) (*models.User, error) {
	return nil, nil
}

func (s *stubService) GetUser(ctx context.Context, id string) (*models.UserResponse, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return u, nil
}

func (s *stubService) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.UserResponse, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, service.ErrInvalidInput
		}
		u.Name = *req.Name
	}
	return u, nil
}

const meID = "5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors())
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, meID)
		c.Next()
	})
	NewUserHandler(&stubService{users: map[string]*models.UserResponse{
		meID: {ID: meID, Name: "alice.eth", WalletAddress: "0xabc"},
	}}).RegisterRoutes(api)
	return r
}

func TestGetMe(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"alice.eth"`)
}

func TestGetUser_BadID(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/42", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/00000000-0000-0000-0000-000000000000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), `"id":"00000000-0000-0000-0000-000000000000"`)
}

func TestUpdateMe(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", strings.NewReader(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Alice"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", strings.NewReader(`{"name":" "}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", strings.NewReader(`{"profile_image_id":"nope"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", strings.NewReader(`{`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
