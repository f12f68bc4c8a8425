package repository

import (
	"context"
	"errors"

	"flashsquad-backend/internal/features/post/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrImageNotFound   = errors.New("image not found")
)

type PostRepository interface {
	// CreatePost inserts the post and its image attachments atomically.
	CreatePost(ctx context.Context, squadID, authorID, body string, imageIDs []string) (string, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	ListFeed(ctx context.Context, squadID string, limit, offset int) ([]models.Post, error)
	DeletePost(ctx context.Context, postID string) error

	CreateComment(ctx context.Context, postID, authorID, body string) (string, error)
	GetComment(ctx context.Context, commentID string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error

	// AddReaction reports whether a new reaction row was written.
	AddReaction(ctx context.Context, postID, personaID, reaction string) (bool, error)
	RemoveReaction(ctx context.Context, postID, personaID, reaction string) error
	ReactionSummary(ctx context.Context, postID string) ([]models.ReactionCount, error)
}
