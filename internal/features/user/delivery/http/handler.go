package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/user/models"
	"flashsquad-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterRoutes expects router to already require a session.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("/me", h.getMe)
		users.PATCH("/me", h.updateMe)
		users.GET("/:id", h.getUser)
	}
}

// @Summary Get current user
// @Description Profile of the signed-in wallet's user
// @Tags users
// @Produce json
// @Security SessionToken
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	h.respondUser(c, middleware.UserID(c))
}

// @Summary Get user by ID
// @Tags users
// @Produce json
// @Security SessionToken
// @Param id path string true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) getUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		_ = c.Error(apperrors.NewValidationError("id", "must be a UUID"))
		return
	}
	h.respondUser(c, id)
}

func (h *UserHandler) respondUser(c *gin.Context, id string) {
	user, err := h.service.GetUser(c.Request.Context(), id)
	if errors.Is(err, service.ErrUserNotFound) {
		_ = c.Error(apperrors.NewNotFoundError("User", id))
		return
	}
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Update current user
// @Description Partially update name, bio or profile image
// @Tags users
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body models.UpdateUserRequest true "Fields to change"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /users/me [patch]
func (h *UserHandler) updateMe(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}
	if req.ProfileImageID != nil && *req.ProfileImageID != "" {
		if _, err := uuid.Parse(*req.ProfileImageID); err != nil {
			_ = c.Error(apperrors.NewValidationError("profile_image_id", "must be a UUID"))
			return
		}
	}

	user, err := h.service.UpdateUser(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, user)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "User not found")
	case errors.Is(err, service.ErrImageNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Profile image not found")
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	default:
		return apperrors.NewDatabaseError("user", err)
	}
}
