package models

import (
	"time"

	mediamodels "flashsquad-backend/internal/features/media/models"
)

// Author is the persona a post or comment was written as.
type Author struct {
	PersonaID   string `json:"persona_id"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url,omitempty"`
	// OwnerUserID is the user currently holding the persona's NFT.
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

// ReactionCount summarises one reaction on a post.
type ReactionCount struct {
	Reaction string `json:"reaction" example:"🔥"`
	Count    int    `json:"count" example:"3"`
}

// Post is a feed entry.
// @Description Squad feed post
type Post struct {
	ID           string                 `json:"id"`
	SquadID      string                 `json:"squad_id"`
	Author       Author                 `json:"author"`
	Body         string                 `json:"body"`
	Images       []mediamodels.ImageRef `json:"images"`
	CommentCount int                    `json:"comment_count"`
	Reactions    []ReactionCount        `json:"reactions"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	SquadID   string    `json:"-"`
	Author    Author    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePostRequest struct {
	Body     string   `json:"body" example:"gm squad"`
	ImageIDs []string `json:"image_ids"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required" example:"wagmi"`
}

type ReactionRequest struct {
	Reaction string `json:"reaction" binding:"required" example:"🔥"`
}

// FeedPage is one page of a squad feed.
type FeedPage struct {
	Posts  []Post `json:"posts"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
