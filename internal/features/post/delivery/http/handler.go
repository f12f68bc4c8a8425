package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "flashsquad-backend/internal/common/errors"
	"flashsquad-backend/internal/common/middleware"
	"flashsquad-backend/internal/features/post/models"
	"flashsquad-backend/internal/features/post/service"
)

type PostHandler struct {
	service service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{service: service}
}

// RegisterRoutes expects router to already require a session.
func (h *PostHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/squads/:id/posts", requireUUID("id"), h.feed)
	router.POST("/squads/:id/posts", requireUUID("id"), h.createPost)

	posts := router.Group("/posts/:id", requireUUID("id"))
	{
		posts.GET("", h.getPost)
		posts.DELETE("", h.deletePost)
		posts.GET("/comments", h.listComments)
		posts.POST("/comments", h.createComment)
		posts.POST("/reactions", h.addReaction)
		posts.DELETE("/reactions", h.removeReaction)
	}

	router.DELETE("/comments/:id", requireUUID("id"), h.deleteComment)
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

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		_ = c.Error(apperrors.NewValidationError(name, "must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

// @Summary Squad feed
// @Description Newest activity first. limit defaults to 20 and is capped at 100.
// @Tags posts
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} models.FeedPage
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/posts [get]
func (h *PostHandler) feed(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}

	page, err := h.service.Feed(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit, offset)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary Create post
// @Description Posts as the caller's current persona in the squad
// @Tags posts
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Squad ID"
// @Param body body models.CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /squads/{id}/posts [post]
func (h *PostHandler) createPost(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	p, err := h.service.CreatePost(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get post
// @Tags posts
// @Produce json
// @Security SessionToken
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} middleware.ErrorResponse
// @Router /posts/{id} [get]
func (h *PostHandler) getPost(c *gin.Context) {
	p, err := h.service.GetPost(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete post
// @Description Author only
// @Tags posts
// @Security SessionToken
// @Param id path string true "Post ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Router /posts/{id} [delete]
func (h *PostHandler) deletePost(c *gin.Context) {
	if err := h.service.DeletePost(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List comments
// @Tags comments
// @Produce json
// @Security SessionToken
// @Param id path string true "Post ID"
// @Success 200 {array} models.Comment
// @Router /posts/{id}/comments [get]
func (h *PostHandler) listComments(c *gin.Context) {
	out, err := h.service.ListComments(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Post ID"
// @Param body body models.CreateCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} middleware.ErrorResponse
// @Router /posts/{id}/comments [post]
func (h *PostHandler) createComment(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	out, err := h.service.CreateComment(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusCreated, out)
}

// @Summary Delete comment
// @Description Author only
// @Tags comments
// @Security SessionToken
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *PostHandler) deleteComment(c *gin.Context) {
	if err := h.service.DeleteComment(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary React to a post
// @Tags reactions
// @Accept json
// @Produce json
// @Security SessionToken
// @Param id path string true "Post ID"
// @Param body body models.ReactionRequest true "Reaction"
// @Success 200 {array} models.ReactionCount
// @Router /posts/{id}/reactions [post]
func (h *PostHandler) addReaction(c *gin.Context) {
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	out, err := h.service.AddReaction(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Reaction)
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Remove my reaction
// @Tags reactions
// @Produce json
// @Security SessionToken
// @Param id path string true "Post ID"
// @Param reaction query string true "Reaction"
// @Success 200 {array} models.ReactionCount
// @Router /posts/{id}/reactions [delete]
func (h *PostHandler) removeReaction(c *gin.Context) {
	out, err := h.service.RemoveReaction(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Query("reaction"))
	if err != nil {
		_ = c.Error(mapError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Post not found")
	case errors.Is(err, service.ErrCommentNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Comment not found")
	case errors.Is(err, service.ErrSquadNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "Squad not found")
	case errors.Is(err, service.ErrNotMember):
		return apperrors.Wrap(err, apperrors.ErrCodeNotSquadMember, "You are not a member of this squad")
	case errors.Is(err, service.ErrNoPersona):
		return apperrors.NewForbiddenError("pick a persona you hold in this squad first")
	case errors.Is(err, service.ErrNotAuthor):
		return apperrors.NewForbiddenError("only the author can delete this")
	case errors.Is(err, service.ErrImageNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Image not found")
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	default:
		return apperrors.NewDatabaseError("post", err)
	}
}
