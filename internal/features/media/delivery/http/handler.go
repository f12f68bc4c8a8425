package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/media/service"
)

type MediaHandler struct {
	service service.MediaService
}

func NewMediaHandler(service service.MediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

// RegisterRoutes mounts the session-protected media endpoints.
func (h *MediaHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/media/uploads", h.createUpload)
	router.GET("/media/assemblies/:id", h.getAssembly)
	router.POST("/images", h.createImage)
}

// RegisterWebhooks mounts callbacks that authenticate by signature instead
// of a session.
func (h *MediaHandler) RegisterWebhooks(router *gin.RouterGroup) {
	router.POST("/media/webhooks/transcode", h.transcodeWebhook)
}

// @Summary Presign an upload
// @Description Returns a presigned PUT URL and the public URL the object will have
// @Tags media
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body models.UploadRequest true "File to upload"
// @Success 200 {object} storage.Upload
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /media/uploads [post]
func (h *MediaHandler) createUpload(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	up, err := h.service.CreateUpload(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, up)
}

// @Summary Register an image
// @Tags media
// @Accept json
// @Produce json
// @Security SessionToken
// @Param body body models.CreateImageRequest true "Image"
// @Success 201 {object} models.Image
// @Failure 400 {object} middleware.ErrorResponse
// @Router /images [post]
func (h *MediaHandler) createImage(c *gin.Context) {
	var req models.CreateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	img, err := h.service.CreateImage(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusCreated, img)
}

// @Summary Transcoding completion webhook
// @Tags media
// @Accept x-www-form-urlencoded
// @Produce json
// @Param transloadit formData string true "Assembly status JSON"
// @Param signature formData string true "Hex HMAC of the transloadit field"
// @Success 200 {object} models.Assembly
// @Failure 401 {object} middleware.ErrorResponse
// @Router /media/webhooks/transcode [post]
func (h *MediaHandler) transcodeWebhook(c *gin.Context) {
	payload := c.PostForm("transloadit")
	signature := c.PostForm("signature")
	if payload == "" {
		_ = c.Error(apperrors.NewValidationError("transloadit", "is required"))
		return
	}

	a, err := h.service.HandleTranscodeNotification(c.Request.Context(), payload, signature)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary Get transcoding result
// @Tags media
// @Produce json
// @Security SessionToken
// @Param id path string true "Assembly ID"
// @Success 200 {object} models.Assembly
// @Failure 404 {object} middleware.ErrorResponse
// @Router /media/assemblies/{id} [get]
func (h *MediaHandler) getAssembly(c *gin.Context) {
	id := c.Param("id")
	a, err := h.service.GetAssembly(c.Request.Context(), id)
	if errors.Is(err, service.ErrAssemblyNotFound) {
		_ = c.Error(apperrors.NewNotFoundError("Assembly", id))
		return
	}
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, a)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		return apperrors.NewUnauthorizedError("invalid webhook signature")
	case errors.Is(err, service.ErrStorageFailed):
		return apperrors.Wrap(err, apperrors.ErrCodeStorageError, "Object storage unavailable")
	case errors.Is(err, service.ErrAssemblyCacheDown):
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "Cache unavailable")
	default:
		return apperrors.NewDatabaseError("image", err)
	}
}
