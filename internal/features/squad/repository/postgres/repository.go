package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	mediamodels "flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/squad/models"
	"flashsquad-backend/internal/features/squad/repository"
	"flashsquad-backend/internal/platform/postgres"
)

const foreignKeyViolation = "23503"

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.SquadRepository {
	return &postgresRepository{db: db}
}

const upsertCollectionQuery = `
	INSERT INTO nft_collections (network, contract_address, name, description, image_url)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
	ON CONFLICT ON CONSTRAINT nft_collections_network_contract_address_key DO UPDATE SET
		name        = COALESCE(EXCLUDED.name, nft_collections.name),
		description = COALESCE(EXCLUDED.description, nft_collections.description),
		image_url   = COALESCE(EXCLUDED.image_url, nft_collections.image_url),
		updated_at  = NOW()
	RETURNING id
`

// brand_color is only seeded on insert; admins own it afterwards.
const upsertSquadQuery = `
	INSERT INTO squads (nft_collection_id, display_name, description, brand_color)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
	ON CONFLICT ON CONSTRAINT squads_nft_collection_id_key DO UPDATE SET
		display_name = EXCLUDED.display_name,
		description  = COALESCE(EXCLUDED.description, squads.description),
		updated_at   = NOW()
	RETURNING id
`

const upsertNFTQuery = `
	INSERT INTO nfts (nft_collection_id, token_id, wallet_id, name, description, image_url)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
	ON CONFLICT ON CONSTRAINT nfts_nft_collection_id_token_id_key DO UPDATE SET
		wallet_id   = EXCLUDED.wallet_id,
		name        = EXCLUDED.name,
		description = EXCLUDED.description,
		image_url   = EXCLUDED.image_url,
		updated_at  = NOW()
	RETURNING id
`

const upsertPersonaQuery = `
	INSERT INTO personas (nft_id, display_name, bio, image_url)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
	ON CONFLICT ON CONSTRAINT personas_nft_id_key DO UPDATE SET
		display_name = EXCLUDED.display_name,
		bio          = CASE WHEN personas.bio_edited_at IS NULL THEN EXCLUDED.bio ELSE personas.bio END,
		image_url    = EXCLUDED.image_url,
		updated_at   = NOW()
	RETURNING id
`

const upsertRelationshipQuery = `
	INSERT INTO user_squad_relationships (user_id, squad_id, current_persona_id, is_admin)
	VALUES ($1, $2, $3, true)
	ON CONFLICT ON CONSTRAINT user_squad_relationships_user_id_squad_id_key DO UPDATE SET
		is_admin           = true,
		current_persona_id = COALESCE(user_squad_relationships.current_persona_id, EXCLUDED.current_persona_id),
		updated_at         = NOW()
`

// releaseNFTsQuery drops the wallet from NFTs it no longer holds on fully scanned networks.
const releaseNFTsQuery = `
	UPDATE nfts n SET wallet_id = NULL, updated_at = NOW()
	FROM nft_collections c
	WHERE c.id = n.nft_collection_id
	  AND n.wallet_id = $1
	  AND c.network = ANY($2::text[])
	  AND NOT (n.id = ANY($3::uuid[]))
`

// heldInSquad is true when the wallet $2 holds an NFT of relationship r's squad.
const heldInSquad = `
	SELECT 1 FROM nfts hn
	JOIN squads hs ON hs.nft_collection_id = hn.nft_collection_id
	WHERE hs.id = r.squad_id AND hn.wallet_id = $2
`

// repointPersonaQuery replaces a current persona the wallet no longer holds
// with the lowest held token of the squad, or NULL.
const repointPersonaQuery = `
	UPDATE user_squad_relationships r SET
		current_persona_id = (
			SELECT p.id FROM personas p
			JOIN nfts n ON n.id = p.nft_id
			JOIN squads s ON s.nft_collection_id = n.nft_collection_id
			WHERE s.id = r.squad_id AND n.wallet_id = $2
			ORDER BY length(n.token_id), n.token_id
			LIMIT 1
		),
		updated_at = NOW()
	WHERE r.user_id = $1
	  AND r.current_persona_id IS NOT NULL
	  AND NOT EXISTS (
		SELECT 1 FROM personas cp
		JOIN nfts cn ON cn.id = cp.nft_id
		WHERE cp.id = r.current_persona_id AND cn.wallet_id = $2
	  )
`

const revokeAdminQuery = `
	UPDATE user_squad_relationships r SET is_admin = false, updated_at = NOW()
	WHERE r.user_id = $1 AND r.is_admin AND NOT EXISTS (` + heldInSquad + `)
`

// UpsertHoldings создает или обновляет коллекции, сквады, NFT и персоны одной транзакцией
func (r *postgresRepository) UpsertHoldings(ctx context.Context, userID, walletID string, batch models.UpsertBatch) (*models.UpsertResult, error) {
	result := &models.UpsertResult{}
	err := postgres.WithTx(ctx, r.db, func(ctx context.Context, tx postgres.DBTX) error {
		seenSquads := make(map[string]bool)
		nftIDs := make([]string, 0, len(batch.Records))
		for _, rec := range batch.Records {
			var collectionID, squadID, nftID, personaID string

			if err := tx.QueryRowContext(ctx, upsertCollectionQuery,
				rec.Network, rec.ContractAddress, rec.CollectionName, rec.CollectionDesc, rec.CollectionImage,
			).Scan(&collectionID); err != nil {
				return fmt.Errorf("failed to upsert collection %s/%s: %w", rec.Network, rec.ContractAddress, err)
			}

			if err := tx.QueryRowContext(ctx, upsertSquadQuery,
				collectionID, rec.CollectionName, rec.CollectionDesc, rec.BrandColor,
			).Scan(&squadID); err != nil {
				return fmt.Errorf("failed to upsert squad: %w", err)
			}

			if err := tx.QueryRowContext(ctx, upsertNFTQuery,
				collectionID, rec.TokenID, walletID, rec.NFTName, rec.NFTDescription, rec.ImageURL,
			).Scan(&nftID); err != nil {
				return fmt.Errorf("failed to upsert nft %s: %w", rec.TokenID, err)
			}

			if err := tx.QueryRowContext(ctx, upsertPersonaQuery,
				nftID, rec.PersonaName, rec.NFTDescription, rec.ImageURL,
			).Scan(&personaID); err != nil {
				return fmt.Errorf("failed to upsert persona: %w", err)
			}

			if _, err := tx.ExecContext(ctx, upsertRelationshipQuery, userID, squadID, personaID); err != nil {
				return fmt.Errorf("failed to upsert squad relationship: %w", err)
			}

			if !seenSquads[squadID] {
				seenSquads[squadID] = true
				result.SquadIDs = append(result.SquadIDs, squadID)
			}
			nftIDs = append(nftIDs, nftID)
			result.PersonaIDs = append(result.PersonaIDs, personaID)
		}
		return reconcileOwnership(ctx, tx, userID, walletID, batch.CompleteNetworks, nftIDs)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reconcileOwnership releases NFTs the wallet no longer holds, then fixes the
// user's current personas and admin flags to match.
func reconcileOwnership(ctx context.Context, tx postgres.DBTX, userID, walletID string, networks, heldNFTs []string) error {
	if len(networks) > 0 {
		if _, err := tx.ExecContext(ctx, releaseNFTsQuery, walletID, pq.Array(networks), pq.Array(heldNFTs)); err != nil {
			return fmt.Errorf("failed to release nfts: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, repointPersonaQuery, userID, walletID); err != nil {
		return fmt.Errorf("failed to repoint current personas: %w", err)
	}
	if _, err := tx.ExecContext(ctx, revokeAdminQuery, userID, walletID); err != nil {
		return fmt.Errorf("failed to revoke admin: %w", err)
	}
	return nil
}

const squadColumns = `
	s.id, s.nft_collection_id, c.network, c.contract_address,
	s.display_name, COALESCE(s.description, ''), COALESCE(s.brand_color, ''), COALESCE(s.typeface, ''),
	si.id, si.url, si.alt_text,
	s.created_at, s.updated_at
`

const squadJoins = `
	JOIN nft_collections c ON c.id = s.nft_collection_id
	LEFT JOIN images si ON si.id = s.squad_image_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

type nullImage struct {
	id, url, alt sql.NullString
}

func (n nullImage) ref() *mediamodels.ImageRef {
	if !n.id.Valid {
		return nil
	}
	return &mediamodels.ImageRef{ID: n.id.String, URL: n.url.String, AltText: n.alt.String}
}

func scanSquad(row rowScanner, extra ...any) (*models.Squad, error) {
	var (
		s   models.Squad
		img nullImage
	)
	dest := []any{
		&s.ID, &s.NFTCollectionID, &s.Network, &s.ContractAddress,
		&s.DisplayName, &s.Description, &s.BrandColor, &s.Typeface,
		&img.id, &img.url, &img.alt,
		&s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.SquadImage = img.ref()
	return &s, nil
}

// GetSquad получает сквад по ID
func (r *postgresRepository) GetSquad(ctx context.Context, squadID string) (*models.Squad, error) {
	query := `SELECT ` + squadColumns + ` FROM squads s ` + squadJoins + ` WHERE s.id = $1`
	s, err := scanSquad(r.db.QueryRowContext(ctx, query, squadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrSquadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get squad: %w", err)
	}
	return s, nil
}

const membershipSelect = `
	SELECT ` + squadColumns + `,
	       r.is_admin, r.is_hidden,
	       p.id, p.display_name, p.image_url, pi.url
	FROM user_squad_relationships r
	JOIN squads s ON s.id = r.squad_id
	` + squadJoins + `
	LEFT JOIN personas p ON p.id = r.current_persona_id
	LEFT JOIN images pi ON pi.id = p.profile_image_id
`

// holdsSquadNFT limits relationships to users whose wallet currently holds an
// NFT of the squad's collection.
const holdsSquadNFT = `
	EXISTS (
		SELECT 1 FROM nfts hn
		JOIN users hu ON hu.wallet_id = hn.wallet_id
		WHERE hu.id = r.user_id AND hn.nft_collection_id = s.nft_collection_id
	)
`

func scanMembership(row rowScanner) (*models.Membership, error) {
	var (
		m             models.Membership
		personaID     sql.NullString
		personaName   sql.NullString
		personaImage  sql.NullString
		personaAvatar sql.NullString
	)
	s, err := scanSquad(row,
		&m.IsAdmin, &m.IsHidden,
		&personaID, &personaName, &personaImage, &personaAvatar,
	)
	if err != nil {
		return nil, err
	}
	m.Squad = *s
	if personaID.Valid {
		m.CurrentPersona = &models.Persona{
			ID:          personaID.String,
			SquadID:     s.ID,
			DisplayName: personaName.String,
			ImageURL:    personaImage.String,
		}
		if personaAvatar.Valid {
			m.CurrentPersona.ProfileImage = &mediamodels.ImageRef{URL: personaAvatar.String}
		}
	}
	return &m, nil
}

// ListForUser возвращает сквады пользователя
func (r *postgresRepository) ListForUser(ctx context.Context, userID string, includeHidden bool) ([]models.Membership, error) {
	query := membershipSelect + ` WHERE r.user_id = $1 AND ($2::boolean OR NOT r.is_hidden) AND ` + holdsSquadNFT +
		` ORDER BY s.display_name, s.id`
	rows, err := r.db.QueryContext(ctx, query, userID, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *postgresRepository) GetMembership(ctx context.Context, userID, squadID string) (*models.Membership, error) {
	query := membershipSelect + ` WHERE r.user_id = $1 AND r.squad_id = $2 AND ` + holdsSquadNFT
	m, err := scanMembership(r.db.QueryRowContext(ctx, query, userID, squadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

const listMembersQuery = `
	SELECT u.id, u.name, r.is_admin, r.created_at,
	       p.id, p.display_name, p.image_url
	FROM user_squad_relationships r
	JOIN squads s ON s.id = r.squad_id
	JOIN users u ON u.id = r.user_id
	LEFT JOIN personas p ON p.id = r.current_persona_id
	WHERE r.squad_id = $1 AND ` + holdsSquadNFT + `
	ORDER BY r.created_at, u.id
`

// ListMembers возвращает участников сквада
func (r *postgresRepository) ListMembers(ctx context.Context, squadID string) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx, listMembersQuery, squadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		var (
			m            models.Member
			personaID    sql.NullString
			personaName  sql.NullString
			personaImage sql.NullString
		)
		if err := rows.Scan(&m.UserID, &m.Name, &m.IsAdmin, &m.JoinedAt,
			&personaID, &personaName, &personaImage); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if personaID.Valid {
			m.CurrentPersona = &models.Persona{
				ID:          personaID.String,
				SquadID:     squadID,
				DisplayName: personaName.String,
				ImageURL:    personaImage.String,
				OwnerUserID: m.UserID,
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const personaSelect = `
	SELECT p.id, p.nft_id, s.id, n.token_id, p.display_name,
	       COALESCE(p.bio, ''), COALESCE(p.image_url, ''),
	       i.id, i.url, i.alt_text,
	       COALESCE(u.id::text, '')
	FROM personas p
	JOIN nfts n ON n.id = p.nft_id
	JOIN squads s ON s.nft_collection_id = n.nft_collection_id
	LEFT JOIN users u ON u.wallet_id = n.wallet_id
	LEFT JOIN images i ON i.id = p.profile_image_id
`

func scanPersona(row rowScanner) (*models.Persona, error) {
	var (
		p   models.Persona
		img nullImage
	)
	if err := row.Scan(&p.ID, &p.NFTID, &p.SquadID, &p.TokenID, &p.DisplayName,
		&p.Bio, &p.ImageURL, &img.id, &img.url, &img.alt, &p.OwnerUserID); err != nil {
		return nil, err
	}
	p.ProfileImage = img.ref()
	return &p, nil
}

// GetPersona получает персону вместе с владельцем
func (r *postgresRepository) GetPersona(ctx context.Context, personaID string) (*models.Persona, error) {
	p, err := scanPersona(r.db.QueryRowContext(ctx, personaSelect+` WHERE p.id = $1`, personaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPersonaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListPersonas(ctx context.Context, userID, squadID string) ([]models.Persona, error) {
	rows, err := r.db.QueryContext(ctx, personaSelect+` WHERE u.id = $1 AND s.id = $2 ORDER BY n.token_id`, userID, squadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var out []models.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *postgresRepository) SetCurrentPersona(ctx context.Context, userID, squadID, personaID string) error {
	return r.execOne(ctx, repository.ErrNotMember, "set current persona", `
		UPDATE user_squad_relationships SET current_persona_id = $3, updated_at = NOW()
		WHERE user_id = $1 AND squad_id = $2
	`, userID, squadID, personaID)
}

func (r *postgresRepository) SetHidden(ctx context.Context, userID, squadID string, hidden bool) error {
	return r.execOne(ctx, repository.ErrNotMember, "set squad visibility", `
		UPDATE user_squad_relationships SET is_hidden = $3, updated_at = NOW()
		WHERE user_id = $1 AND squad_id = $2
	`, userID, squadID, hidden)
}

func (r *postgresRepository) UpdateSquad(ctx context.Context, squadID string, req models.UpdateSquadRequest) error {
	var imageID string
	if req.SquadImageID != nil {
		imageID = *req.SquadImageID
	}
	return r.execOne(ctx, repository.ErrSquadNotFound, "update squad", `
		UPDATE squads SET
			brand_color    = COALESCE($2, brand_color),
			squad_image_id = CASE WHEN $3::boolean THEN NULLIF($4, '')::uuid ELSE squad_image_id END,
			updated_at     = NOW()
		WHERE id = $1
	`, squadID, nullString(req.BrandColor), req.SquadImageID != nil, imageID)
}

func (r *postgresRepository) UpdatePersona(ctx context.Context, personaID string, req models.UpdatePersonaRequest) error {
	var imageID string
	if req.ProfileImageID != nil {
		imageID = *req.ProfileImageID
	}
	return r.execOne(ctx, repository.ErrPersonaNotFound, "update persona", `
		UPDATE personas SET
			bio              = COALESCE($2, bio),
			bio_edited_at    = CASE WHEN $2 IS NULL THEN bio_edited_at ELSE NOW() END,
			profile_image_id = CASE WHEN $3::boolean THEN NULLIF($4, '')::uuid ELSE profile_image_id END,
			updated_at       = NOW()
		WHERE id = $1
	`, personaID, nullString(req.Bio), req.ProfileImageID != nil, imageID)
}

// execOne runs an update that must touch exactly one row.
func (r *postgresRepository) execOne(ctx context.Context, notFound error, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return repository.ErrImageNotFound
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
