package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	mediamodels "flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/user/models"
	"flashsquad-backend/internal/features/user/repository"
	"flashsquad-backend/internal/platform/postgres"
)

const foreignKeyViolation = "23503"

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.UserRepository {
	return &postgresRepository{db: db}
}

const upsertWalletQuery = `
	INSERT INTO wallets (address, ens_name, avatar_url)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
	ON CONFLICT ON CONSTRAINT wallets_address_key DO UPDATE SET
		ens_name   = CASE WHEN $4::boolean THEN EXCLUDED.ens_name ELSE wallets.ens_name END,
		avatar_url = CASE WHEN $4::boolean THEN EXCLUDED.avatar_url ELSE wallets.avatar_url END,
		updated_at = NOW()
	RETURNING id
`

const upsertUserQuery = `
	INSERT INTO users (wallet_id, name, avatar_url)
	VALUES ($1, $2, NULLIF($3, ''))
	ON CONFLICT ON CONSTRAINT users_wallet_id_key DO UPDATE SET
		name       = CASE WHEN $4::boolean THEN EXCLUDED.name ELSE users.name END,
		avatar_url = CASE WHEN $4::boolean THEN EXCLUDED.avatar_url ELSE users.avatar_url END,
		updated_at = NOW()
	RETURNING id
`

// UpsertByWallet создает или обновляет кошелек и пользователя в одной транзакции
func (r *postgresRepository) UpsertByWallet(ctx context.Context, in models.UpsertInput) (*models.User, error) {
	var userID string
	err := postgres.WithTx(ctx, r.db, func(ctx context.Context, tx postgres.DBTX) error {
		var walletID string
		if err := tx.QueryRowContext(ctx, upsertWalletQuery,
			in.Address, in.ENSName, in.AvatarURL, in.ENSKnown,
		).Scan(&walletID); err != nil {
			return fmt.Errorf("failed to upsert wallet: %w", err)
		}

		if err := tx.QueryRowContext(ctx, upsertUserQuery,
			walletID, in.Name, in.AvatarURL, in.ENSKnown,
		).Scan(&userID); err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, userID)
}

const selectUserQuery = `
	SELECT u.id, u.wallet_id, w.address, COALESCE(w.ens_name, ''),
	       u.name, COALESCE(u.bio, ''), COALESCE(u.avatar_url, ''),
	       i.id, i.url, i.alt_text,
	       u.created_at, u.updated_at
	FROM users u
	JOIN wallets w ON w.id = u.wallet_id
	LEFT JOIN images i ON i.id = u.profile_image_id
	WHERE u.id = $1
`

// GetByID получает пользователя по ID
func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u        models.User
		imageID  sql.NullString
		imageURL sql.NullString
		imageAlt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectUserQuery, id).Scan(
		&u.ID, &u.WalletID, &u.Address, &u.ENSName,
		&u.Name, &u.Bio, &u.AvatarURL,
		&imageID, &imageURL, &imageAlt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if imageID.Valid {
		u.ProfileImage = &mediamodels.ImageRef{ID: imageID.String, URL: imageURL.String, AltText: imageAlt.String}
	}
	return &u, nil
}

const updateUserQuery = `
	UPDATE users SET
		name             = COALESCE($2, name),
		bio              = COALESCE($3, bio),
		profile_image_id = CASE WHEN $4::boolean THEN NULLIF($5, '')::uuid ELSE profile_image_id END,
		updated_at       = NOW()
	WHERE id = $1
`

// Update обновляет профиль пользователя
func (r *postgresRepository) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	var imageID string
	if req.ProfileImageID != nil {
		imageID = *req.ProfileImageID
	}

	result, err := r.db.ExecContext(ctx, updateUserQuery,
		id, nullString(req.Name), nullString(req.Bio), req.ProfileImageID != nil, imageID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, repository.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, repository.ErrUserNotFound
	}

	return r.GetByID(ctx, id)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
