package repository

import (
	"context"
	"errors"

	"flashsquad-backend/internal/features/media/models"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository interface {
	Create(ctx context.Context, url, altText, description string) (*models.Image, error)
	GetByID(ctx context.Context, id string) (*models.Image, error)
}
