package repository

import (
	"context"
	"errors"

	"flashsquad-backend/internal/features/user/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrImageNotFound = errors.New("image not found")
)

type UserRepository interface {
	// UpsertByWallet creates or refreshes the wallet and its user atomically.
	UpsertByWallet(ctx context.Context, in models.UpsertInput) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error)
}
