package models

import (
	"time"

	squadmodels "flashsquad-backend/internal/features/squad/models"
	usermodels "flashsquad-backend/internal/features/user/models"
)

// SignInRequest carries an EIP-4361 message and its personal-sign signature.
// Message may be the signed text or its JSON object form.
type SignInRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required" example:"0x4f3c...1b"`
}

type NonceResponse struct {
	Nonce     string    `json:"nonce" example:"9f86d081884c7d659a2feaa0c55ad015"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is the result of a completed sign-in.
type Session struct {
	Token     string                    `json:"token"`
	ExpiresAt time.Time                 `json:"expires_at"`
	Address   string                    `json:"address"`
	User      *usermodels.UserResponse  `json:"user"`
	Holdings  *squadmodels.UpsertReport `json:"holdings"`
}

// SessionInfo describes the caller's current session, if any.
type SessionInfo struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"user_id,omitempty"`
	Address       string     `json:"address,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
