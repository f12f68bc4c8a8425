package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	mediamodels "flashsquad-backend/internal/features/media/models"
	"flashsquad-backend/internal/features/post/models"
	"flashsquad-backend/internal/features/post/repository"
	"flashsquad-backend/internal/platform/postgres"
)

const foreignKeyViolation = "23503"

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.PostRepository {
	return &postgresRepository{db: db}
}

// authorJoin resolves a persona to the user currently holding its NFT.
const authorJoin = `
	JOIN nfts n ON n.id = a.nft_id
	LEFT JOIN users u ON u.wallet_id = n.wallet_id
`

const postSelect = `
	SELECT p.id, p.squad_id, p.body, p.created_at, p.updated_at,
	       a.id, a.display_name, COALESCE(a.image_url, ''), COALESCE(u.id::text, ''),
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)
	FROM posts p
	JOIN personas a ON a.id = p.author_id
` + authorJoin

const commentSelect = `
	SELECT c.id, c.post_id, p.squad_id, c.body, c.created_at,
	       a.id, a.display_name, COALESCE(a.image_url, ''), COALESCE(u.id::text, '')
	FROM comments c
	JOIN posts p ON p.id = c.post_id
	JOIN personas a ON a.id = c.author_id
` + authorJoin

type rowScanner interface {
	Scan(dest ...any) error
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

// CreatePost создает пост вместе с картинками
func (r *postgresRepository) CreatePost(ctx context.Context, squadID, authorID, body string, imageIDs []string) (string, error) {
	var postID string
	err := postgres.WithTx(ctx, r.db, func(ctx context.Context, tx postgres.DBTX) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO posts (squad_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id
		`, squadID, authorID, body).Scan(&postID); err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}

		for i, imageID := range imageIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO post_images (post_id, image_id, position)
				VALUES ($1, $2, $3)
			`, postID, imageID, i)
			if isForeignKeyViolation(err) {
				return repository.ErrImageNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to attach image: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return postID, nil
}

func scanPost(row rowScanner) (*models.Post, error) {
	p := models.Post{
		Images:    []mediamodels.ImageRef{},
		Reactions: []models.ReactionCount{},
	}
	if err := row.Scan(&p.ID, &p.SquadID, &p.Body, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.PersonaID, &p.Author.DisplayName, &p.Author.ImageURL, &p.Author.OwnerUserID,
		&p.CommentCount); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	posts := []models.Post{*p}
	if err := r.attach(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListFeed возвращает ленту сквада, свежие сверху
func (r *postgresRepository) ListFeed(ctx context.Context, squadID string, limit, offset int) ([]models.Post, error) {
	query := postSelect + ` WHERE p.squad_id = $1 ORDER BY p.updated_at DESC, p.id LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, squadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attach(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attach loads images and reaction counts for posts in two batched queries.
func (r *postgresRepository) attach(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pi.post_id, i.id, i.url, COALESCE(i.alt_text, '')
		FROM post_images pi
		JOIN images i ON i.id = pi.image_id
		WHERE pi.post_id = ANY($1)
		ORDER BY pi.post_id, pi.position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load post images: %w", err)
	}
	for rows.Next() {
		var (
			postID string
			img    mediamodels.ImageRef
		)
		if err := rows.Scan(&postID, &img.ID, &img.URL, &img.AltText); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan post image: %w", err)
		}
		i := index[postID]
		posts[i].Images = append(posts[i].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT post_id, reaction, COUNT(*)
		FROM post_reactions
		WHERE post_id = ANY($1)
		GROUP BY post_id, reaction
		ORDER BY post_id, COUNT(*) DESC, reaction
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load reactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			postID string
			rc     models.ReactionCount
		)
		if err := rows.Scan(&postID, &rc.Reaction, &rc.Count); err != nil {
			return fmt.Errorf("failed to scan reaction: %w", err)
		}
		i := index[postID]
		posts[i].Reactions = append(posts[i].Reactions, rc)
	}
	return rows.Err()
}

func (r *postgresRepository) DeletePost(ctx context.Context, postID string) error {
	return r.execOne(ctx, repository.ErrPostNotFound, "delete post", `DELETE FROM posts WHERE id = $1`, postID)
}

// CreateComment добавляет комментарий и поднимает пост в ленте
func (r *postgresRepository) CreateComment(ctx context.Context, postID, authorID, body string) (string, error) {
	var commentID string
	err := postgres.WithTx(ctx, r.db, func(ctx context.Context, tx postgres.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO comments (post_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id
		`, postID, authorID, body).Scan(&commentID)
		if isForeignKeyViolation(err) {
			return repository.ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE posts SET updated_at = NOW() WHERE id = $1`, postID); err != nil {
			return fmt.Errorf("failed to touch post: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return commentID, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.SquadID, &c.Body, &c.CreatedAt,
		&c.Author.PersonaID, &c.Author.DisplayName, &c.Author.ImageURL, &c.Author.OwnerUserID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepository) GetComment(ctx context.Context, commentID string) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, commentSelect+` WHERE c.id = $1`, commentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

func (r *postgresRepository) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, commentSelect+` WHERE c.post_id = $1 ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	out := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *postgresRepository) DeleteComment(ctx context.Context, commentID string) error {
	return r.execOne(ctx, repository.ErrCommentNotFound, "delete comment", `DELETE FROM comments WHERE id = $1`, commentID)
}

func (r *postgresRepository) AddReaction(ctx context.Context, postID, personaID, reaction string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO post_reactions (post_id, persona_id, reaction)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT post_reactions_post_id_persona_id_reaction_key DO NOTHING
	`, postID, personaID, reaction)
	if isForeignKeyViolation(err) {
		return false, repository.ErrPostNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to add reaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// RemoveReaction is a no-op when the reaction is absent.
func (r *postgresRepository) RemoveReaction(ctx context.Context, postID, personaID, reaction string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM post_reactions
		WHERE post_id = $1 AND persona_id = $2 AND reaction = $3
	`, postID, personaID, reaction)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) ReactionSummary(ctx context.Context, postID string) ([]models.ReactionCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reaction, COUNT(*)
		FROM post_reactions
		WHERE post_id = $1
		GROUP BY reaction
		ORDER BY COUNT(*) DESC, reaction
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise reactions: %w", err)
	}
	defer rows.Close()

	out := []models.ReactionCount{}
	for rows.Next() {
		var rc models.ReactionCount
		if err := rows.Scan(&rc.Reaction, &rc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *postgresRepository) execOne(ctx context.Context, notFound error, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
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
