package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/holdings"
	"flashsquad-backend/internal/features/squad/models"
	"flashsquad-backend/internal/features/squad/service"
)

const (
	meID      = "5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"
	squadID   = "0b7e5a2c-9d41-4f1e-8c3a-6e2d1f0a9b77"
	personaID = "c3d2e1f0-aaaa-4bbb-8ccc-123456789abc"
)

type stubService struct {
	service.SquadService
	err       error
	hidden    bool
	updateReq models.UpdateSquadRequest
}

func (s *stubService) ListSquads(ctx context.Context, userID string, includeHidden bool) ([]models.Membership, error) {
	s.hidden = includeHidden
	return []models.Membership{{Squad: models.Squad{ID: squadID}, IsAdmin: true}}, s.err
}

func (s *stubService) GetSquad(ctx context.Context, userID, id string) (*models.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Membership{Squad: models.Squad{ID: id}}, nil
}

func (s *stubService) SetCurrentPersona(ctx context.Context, userID, id, pid string) (*models.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Membership{Squad: models.Squad{ID: id}, CurrentPersona: &models.Persona{ID: pid}}, nil
}

func (s *stubService) UpdateSquad(ctx context.Context, userID, id string, req models.UpdateSquadRequest) (*models.Squad, error) {
	s.updateReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Squad{ID: id, BrandColor: *req.BrandColor}, nil
}

func (s *stubService) UpdatePersona(ctx context.Context, userID, id string, req models.UpdatePersonaRequest) (*models.Persona, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Persona{ID: id, Bio: *req.Bio}, nil
}

type stubQueue struct {
	userID string
	err    error
}

func (q *stubQueue) Enqueue(ctx context.Context, userID string) (string, error) {
	q.userID = userID
	return "1-0", q.err
}

func newRouter(svc service.SquadService, q RefreshEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors())
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, meID)
		c.Next()
	})
	NewSquadHandler(svc, q).RegisterRoutes(api)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestListSquads(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(svc, &stubQueue{}), http.MethodGet, "/api/v1/squads?include_hidden=true", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.hidden)
	assert.Contains(t, w.Body.String(), squadID)
}

func TestGetSquad_BadID(t *testing.T) {
	w := do(newRouter(&stubService{}, &stubQueue{}), http.MethodGet, "/api/v1/squads/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestGetSquad_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNotMember, http.StatusForbidden, "NOT_SQUAD_MEMBER"},
		{service.ErrSquadNotFound, http.StatusNotFound, "NOT_FOUND"},
		{service.ErrNotOwner, http.StatusForbidden, "NOT_OWNER"},
		{service.ErrNotAdmin, http.StatusForbidden, "FORBIDDEN"},
		{holdings.ErrUpstreamUnavailable, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "DATABASE_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w := do(newRouter(&stubService{err: tc.err}, &stubQueue{}), http.MethodGet, "/api/v1/squads/"+squadID, "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestSetPersona(t *testing.T) {
	r := newRouter(&stubService{}, &stubQueue{})

	w := do(r, http.MethodPut, "/api/v1/squads/"+squadID+"/persona", `{"persona_id":"`+personaID+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), personaID)

	w = do(r, http.MethodPut, "/api/v1/squads/"+squadID+"/persona", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/squads/"+squadID+"/persona", `{"persona_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateSquad(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, &stubQueue{})

	w := do(r, http.MethodPatch, "/api/v1/squads/"+squadID, `{"brand_color":"#aabbcc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "#aabbcc")

	w = do(r, http.MethodPatch, "/api/v1/squads/"+squadID, `{"brand_color":"#aabbcc","squad_image_id":"bad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePersona_NotOwner(t *testing.T) {
	w := do(newRouter(&stubService{err: service.ErrNotOwner}, &stubQueue{}),
		http.MethodPatch, "/api/v1/personas/"+personaID, `{"bio":"gm"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_OWNER", errorCode(t, w))
}

func TestRefresh(t *testing.T) {
	q := &stubQueue{}
	w := do(newRouter(&stubService{}, q), http.MethodPost, "/api/v1/squads/refresh", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, meID, q.userID)
	assert.Contains(t, w.Body.String(), `"queued":true`)

	q.err = errors.New("redis down")
	w = do(newRouter(&stubService{}, q), http.MethodPost, "/api/v1/squads/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
