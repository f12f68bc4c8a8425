package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/squad/models"
	"flashsquad-backend/internal/features/squad/service"
)

// RefreshEnqueuer queues an asynchronous holdings refresh.
type RefreshEnqueuer interface {
	Enqueue(ctx context.Context, userID string) (string, error)
}

type SquadHandler struct {
	service service.SquadService
	queue   RefreshEnqueuer
}

func NewSquadHandler(service service.SquadService, queue RefreshEnqueuer) *SquadHandler {
	return &SquadHandler{
		service: service,
		queue:   queue,
	}
}

// RegisterRoutes expects router to already require a session.
func (h *SquadHandler) RegisterRoutes(router *gin.RouterGroup) {
	squads := router.Group("/squads")
	{
		squads.GET("", h.listSquads)
		squads.POST("/refresh", h.refresh)
		squads.GET("/:id", requireUUID("id"), h.getSquad)
		squads.PATCH("/:id", requireUUID("id"), h.updateSquad)
		squads.GET("/:id/members", requireUUID("id"), h.listMembers)
		squads.GET("/:id/personas", requireUUID("id"), h.listPersonas)
		squads.PUT("/:id/persona", requireUUID("id"), h.setPersona)
		squads.PUT("/:id/visibility", requireUUID("id"), h.setVisibility)
	}

	router.PATCH("/personas/:id", requireUUID("id"), h.updatePersona)
}

func requireUUID(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(param)); err != nil {
			_ = c.Error(apperrors.NewValidationError(param, "must be a UUID"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// @Summary List my squads
// @Tags squads
// @Produce json
// @Security SessionToken
// @Param include_hidden query bool false "Include hidden squads"
// @Success 200 {array} models.Membership
// @Failure 401 {object} middleware.ErrorResponse
// @Router /squads [get]
func (h *SquadHandler) listSquads(c *gin.Context) {
	includeHidden := c.Query("include_hidden") == "true"
	out, err := h.service.ListSquads(c.Request.Context(), middleware.UserID(c), includeHidden)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Get squad
// @Tags squads
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Success 200 {object} models.Membership
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /squads/{id} [get]
func (h *SquadHandler) getSquad(c *gin.Context) {
	m, err := h.service.GetSquad(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary List squad members
// @Tags squads
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Success 200 {array} models.Member
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/members [get]
func (h *SquadHandler) listMembers(c *gin.Context) {
	out, err := h.service.ListMembers(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary List my personas in a squad
// @Tags squads
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Success 200 {array} models.Persona
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/personas [get]
func (h *SquadHandler) listPersonas(c *gin.Context) {
	out, err := h.service.ListPersonas(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Set current persona
// @Tags squads
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Param body body models.SetPersonaRequest true "Persona"
// @Success 200 {object} models.Membership
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/persona [put]
func (h *SquadHandler) setPersona(c *gin.Context) {
	var req models.SetPersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}
	if _, err := uuid.Parse(req.PersonaID); err != nil {
		_ = c.Error(apperrors.NewValidationError("persona_id", "must be a UUID"))
		return
	}

	m, err := h.service.SetCurrentPersona(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.PersonaID)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary Hide or show a squad
// @Tags squads
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Param body body models.VisibilityRequest true "Visibility"
// @Success 200 {object} models.Membership
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/visibility [put]
func (h *SquadHandler) setVisibility(c *gin.Context) {
	var req models.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	m, err := h.service.SetHidden(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Hidden)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary Update squad branding
// @Description Admin only
// @Tags squads
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Param body body models.UpdateSquadRequest true "Fields to change"
// @Success 200 {object} models.Squad
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id} [patch]
func (h *SquadHandler) updateSquad(c *gin.Context) {
	var req models.UpdateSquadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}
	if !optionalUUID(c, "squad_image_id", req.SquadImageID) {
		return
	}

	sq, err := h.service.UpdateSquad(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, sq)
}

// @Summary Update persona
// @Description Owner only
// @Tags personas
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Persona ID"
// @Param body body models.UpdatePersonaRequest true "Fields to change"
// @Success 200 {object} models.Persona
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /personas/{id} [patch]
func (h *SquadHandler) updatePersona(c *gin.Context) {
	var req models.UpdatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}
	if !optionalUUID(c, "profile_image_id", req.ProfileImageID) {
		return
	}

	p, err := h.service.UpdatePersona(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Refresh my holdings
// @Description Queues a rescan of the wallet's NFTs
// @Tags squads
// @Produce json
// @Security SessionToken
// @Success 202 {object} models.RefreshResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /squads/refresh [post]
func (h *SquadHandler) refresh(c *gin.Context) {
	id, err := h.queue.Enqueue(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeCacheError, "Could not queue refresh"))
		return
	}
	c.JSON(http.StatusAccepted, models.RefreshResponse{Queued: true, MessageID: id})
}

// optionalUUID accepts nil or empty (clear) values.
func optionalUUID(c *gin.Context, field string, v *string) bool {
	if v == nil || *v == "" {
		return true
	}
	if _, err := uuid.Parse(*v); err != nil {
		_ = c.Error(apperrors.NewValidationError(field, "must be a UUID"))
		return false
	}
	return true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrSquadNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Squad not found")
	case errors.Is(err, service.ErrPersonaNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Persona not found")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "User not found")
	case errors.Is(err, service.ErrNotMember):
		return apperrors.Wrap(err, apperrors.ErrCodeNotSquadMember, "You are not a member of this squad")
	case errors.Is(err, service.ErrNotAdmin):
		return apperrors.NewForbiddenError("only squad admins can change squad settings")
	case errors.Is(err, service.ErrNotOwner):
		return apperrors.Wrap(err, apperrors.ErrCodeNotOwner, "You do not own this persona")
	case errors.Is(err, service.ErrImageNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Image not found")
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return apperrors.NewUpstreamError("indexer", err)
	default:
		return apperrors.NewDatabaseError("squad", err)
	}
}
