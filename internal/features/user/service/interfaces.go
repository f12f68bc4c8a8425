package service

import (
	"context"

	"flashsquad-backend/internal/features/user/models"
)

type UserService interface {
	// Reconcile resolves off-chain identity for a verified wallet and
	// upserts its user.
	Reconcile(ctx context.Context, address string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.UserResponse, error)
	UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.UserResponse, error)
}

// ENSResolver looks up the primary ENS name of an address.
type ENSResolver interface {
	ENSName(ctx context.Context, address string) (string, error)
}
