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

	"flashsquad-backend/internal/features/user/models"
	"flashsquad-backend/internal/features/user/repository"
)

var userColumns = []string{
	"id", "wallet_id", "address", "ens_name",
	"name", "bio", "avatar_url",
	"image_id", "image_url", "image_alt",
	"created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).AddRow(
		"user-1", "wallet-1", "0xabc", "alice.eth",
		"alice.eth", "", "https://avatar/alice.eth",
		nil, nil, nil,
		now, now,
	)
}

func TestUpsertByWallet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO wallets").
		WithArgs("0xabc", "alice.eth", "https://avatar/alice.eth", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("wallet-1"))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("wallet-1", "alice.eth", "https://avatar/alice.eth", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT u.id").WithArgs("user-1").WillReturnRows(userRow(now))

	u, err := repo.UpsertByWallet(context.Background(), models.UpsertInput{
		Address:   "0xabc",
		Name:      "alice.eth",
		ENSName:   "alice.eth",
		AvatarURL: "https://avatar/alice.eth",
		ENSKnown:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "0xabc", u.Address)
	assert.Nil(t, u.ProfileImage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByWallet_RollsBackOnUserFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO wallets").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("wallet-1"))
	mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.UpsertByWallet(context.Background(), models.UpsertInput{Address: "0xabc", Name: "0xabc"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT u.id").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestGetByID_WithProfileImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT u.id").WithArgs("user-1").WillReturnRows(
		sqlmock.NewRows(userColumns).AddRow(
			"user-1", "wallet-1", "0xabc", "",
			"0xabc", "gm", "",
			"img-1", "https://cdn/a.png", "alt",
			now, now,
		))

	u, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, u.ProfileImage)
	assert.Equal(t, "https://cdn/a.png", u.ProfileImage.URL)
	assert.Equal(t, "gm", u.Bio)
}

func TestUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	name := "Alice"

	mock.ExpectExec("UPDATE users SET").
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), false, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT u.id").WithArgs("user-1").WillReturnRows(userRow(time.Now()))

	_, err := repo.Update(context.Background(), "user-1", models.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_UnknownImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	img := "5f0c7a3e-1b2d-4c55-9a0e-2f8d6c1e9b11"

	mock.ExpectExec("UPDATE users SET").
		WillReturnError(&pq.Error{Code: foreignKeyViolation})

	_, err := repo.Update(context.Background(), "user-1", models.UpdateUserRequest{ProfileImageID: &img})
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestUpdate_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)
	bio := "gm"

	mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), "missing", models.UpdateUserRequest{Bio: &bio})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
