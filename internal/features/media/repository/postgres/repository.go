package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/media/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.ImageRepository {
	return &postgresRepository{db: db}
}

const imageColumns = `id, url, COALESCE(alt_text, ''), COALESCE(description, ''), created_at, updated_at`

// Create сохраняет новое изображение
func (r *postgresRepository) Create(ctx context.Context, url, altText, description string) (*models.Image, error) {
	query := `
		INSERT INTO images (url, alt_text, description)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING ` + imageColumns

	var img models.Image
	err := r.db.QueryRowContext(ctx, query, url, altText, description).Scan(
		&img.ID, &img.URL, &img.AltText, &img.Description, &img.CreatedAt, &img.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	return &img, nil
}

// GetByID получает изображение по ID
func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	err := r.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id).Scan(
		&img.ID, &img.URL, &img.AltText, &img.Description, &img.CreatedAt, &img.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}
