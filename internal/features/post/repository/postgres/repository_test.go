package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsquad-backend/internal/features/post/repository"
)

var postCols = []string{
	"id", "squad_id", "body", "created_at", "updated_at",
	"author_id", "author_name", "author_image", "owner_user_id",
	"comment_count",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreatePost_AttachesImagesInOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO posts").
		WithArgs("squad-1", "persona-1", "gm").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("post-1"))
	mock.ExpectExec("INSERT INTO post_images").
		WithArgs("post-1", "img-a", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_images").
		WithArgs("post-1", "img-b", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreatePost(context.Background(), "squad-1", "persona-1", "gm", []string{"img-a", "img-b"})
	require.NoError(t, err)
	assert.Equal(t, "post-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePost_UnknownImageRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO posts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("post-1"))
	mock.ExpectExec("INSERT INTO post_images").
		WillReturnError(&pq.Error{Code: foreignKeyViolation})
	mock.ExpectRollback()

	_, err := repo.CreatePost(context.Background(), "squad-1", "persona-1", "gm", []string{"missing"})
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFeed_AttachesImagesAndReactions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM posts p").
		WithArgs("squad-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow("post-2", "squad-1", "newer", now, now, "persona-1", "Ape #1", "", "user-1", 2).
			AddRow("post-1", "squad-1", "older", now, now.Add(-time.Hour), "persona-2", "Ape #2", "", "", 0))
	mock.ExpectQuery("FROM post_images pi").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "id", "url", "alt_text"}).
			AddRow("post-1", "img-1", "https://cdn/1.png", "one"))
	mock.ExpectQuery("FROM post_reactions").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "reaction", "count"}).
			AddRow("post-2", "🔥", 3).
			AddRow("post-2", "gm", 1))

	posts, err := repo.ListFeed(context.Background(), "squad-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "post-2", posts[0].ID)
	assert.Equal(t, 2, posts[0].CommentCount)
	assert.Equal(t, "user-1", posts[0].Author.OwnerUserID)
	assert.Empty(t, posts[0].Images)
	require.Len(t, posts[0].Reactions, 2)
	assert.Equal(t, 3, posts[0].Reactions[0].Count)

	require.Len(t, posts[1].Images, 1)
	assert.Equal(t, "img-1", posts[1].Images[0].ID)
	assert.Empty(t, posts[1].Reactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFeed_EmptySkipsAttachments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM posts p").
		WithArgs("squad-1", 5, 10).
		WillReturnRows(sqlmock.NewRows(postCols))

	posts, err := repo.ListFeed(context.Background(), "squad-1", 5, 10)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPost_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM posts p").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}

func TestDeletePost_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM posts").
		WithArgs("post-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeletePost(context.Background(), "post-1")
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}

func TestCreateComment_TouchesPost(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO comments").
		WithArgs("post-1", "persona-1", "wagmi").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("comment-1"))
	mock.ExpectExec("UPDATE posts SET updated_at").
		WithArgs("post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreateComment(context.Background(), "post-1", "persona-1", "wagmi")
	require.NoError(t, err)
	assert.Equal(t, "comment-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateComment_PostGone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO comments").
		WillReturnError(&pq.Error{Code: foreignKeyViolation})
	mock.ExpectRollback()

	_, err := repo.CreateComment(context.Background(), "post-1", "persona-1", "wagmi")
	assert.ErrorIs(t, err, repository.ErrPostNotFound)
}

func TestGetComment(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM comments c").
		WithArgs("comment-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "post_id", "squad_id", "body", "created_at",
			"author_id", "author_name", "author_image", "owner_user_id",
		}).AddRow("comment-1", "post-1", "squad-1", "wagmi", now, "persona-1", "Ape #1", "", "user-1"))

	c, err := repo.GetComment(context.Background(), "comment-1")
	require.NoError(t, err)
	assert.Equal(t, "squad-1", c.SquadID)
	assert.Equal(t, "user-1", c.Author.OwnerUserID)
}

func TestAddReaction_Idempotent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("ON CONFLICT ON CONSTRAINT post_reactions_post_id_persona_id_reaction_key DO NOTHING").
		WithArgs("post-1", "persona-1", "🔥").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO post_reactions").
		WithArgs("post-1", "persona-1", "🔥").
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := repo.AddReaction(context.Background(), "post-1", "persona-1", "🔥")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddReaction(context.Background(), "post-1", "persona-1", "🔥")
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveReaction_Error(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM post_reactions").
		WillReturnError(errors.New("connection reset"))

	err := repo.RemoveReaction(context.Background(), "post-1", "persona-1", "🔥")
	assert.Error(t, err)
}

func TestReactionSummary(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM post_reactions").
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"reaction", "count"}).AddRow("🔥", 2))

	out, err := repo.ReactionSummary(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, "🔥", out[0].Reaction)
	assert.Equal(t, 2, out[0].Count)
}
