package models

import (
	"time"

	mediamodels "flashsquad-backend/internal/features/media/models"
)

// User is a FlashSquad member, one per wallet.
type User struct {
	ID           string
	WalletID     string
	Address      string
	ENSName      string
	Name         string
	Bio          string
	AvatarURL    string
	ProfileImage *mediamodels.ImageRef
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertInput carries what sign-in learned about a wallet. ENSKnown is false
// when resolution failed, in which case stored ENS fields are left untouched.
type UpsertInput struct {
	Address   string
	Name      string
	ENSName   string
	AvatarURL string
	ENSKnown  bool
}

// UserResponse is the public view of a user.
// @Description Public user profile
type UserResponse struct {
	ID            string                `json:"id" example:"5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"`
	Name          string                `json:"name" example:"alice.eth"`
	Bio           string                `json:"bio,omitempty"`
	AvatarURL     string                `json:"avatar_url,omitempty" example:"https://metadata.ens.domains/mainnet/avatar/alice.eth"`
	ProfileImage  *mediamodels.ImageRef `json:"profile_image,omitempty"`
	WalletAddress string                `json:"wallet_address" example:"0xab5801a7d398351b8be11c439e05c5b3259aec9b"`
	ENSName       string                `json:"ens_name,omitempty" example:"alice.eth"`
	CreatedAt     time.Time             `json:"created_at"`
}

// UpdateUserRequest is a partial profile update; nil fields are unchanged.
type UpdateUserRequest struct {
	Name           *string `json:"name" example:"Alice"`
	Bio            *string `json:"bio" example:"gm"`
	ProfileImageID *string `json:"profile_image_id" example:"5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"`
}

func ToUserResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Bio:           u.Bio,
		AvatarURL:     u.AvatarURL,
		ProfileImage:  u.ProfileImage,
		WalletAddress: u.Address,
		ENSName:       u.ENSName,
		CreatedAt:     u.CreatedAt,
	}
}
