package service

import (
	"context"

	"flashsquad-backend/internal/features/post/models"
	squadmodels "flashsquad-backend/internal/features/squad/models"
)

type PostService interface {
	CreatePost(ctx context.Context, userID, squadID string, req models.CreatePostRequest) (*models.Post, error)
	GetPost(ctx context.Context, userID, postID string) (*models.Post, error)
	Feed(ctx context.Context, userID, squadID string, limit, offset int) (*models.FeedPage, error)
	DeletePost(ctx context.Context, userID, postID string) error

	CreateComment(ctx context.Context, userID, postID string, req models.CreateCommentRequest) (*models.Comment, error)
	ListComments(ctx context.Context, userID, postID string) ([]models.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID string) error

	AddReaction(ctx context.Context, userID, postID, reaction string) ([]models.ReactionCount, error)
	RemoveReaction(ctx context.Context, userID, postID, reaction string) ([]models.ReactionCount, error)
}

// SquadAccess answers who may act in a squad and as which persona.
type SquadAccess interface {
	GetSquad(ctx context.Context, squadID string) (*squadmodels.Squad, error)
	GetMembership(ctx context.Context, userID, squadID string) (*squadmodels.Membership, error)
	GetPersona(ctx context.Context, personaID string) (*squadmodels.Persona, error)
}
