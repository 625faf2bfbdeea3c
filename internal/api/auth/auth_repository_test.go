package auth

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryGetUserByEmail(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())
	now := time.Now()

	pool.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("u1", "alice", "a@example.com", "hash", now, now))
	pool.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("b@example.com").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "hash", user.Password)

	_, err = repo.GetUserByEmail(context.Background(), "b@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryRegisterDuplicate(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())

	pool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice", "a@example.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Register(context.Background(), "alice", "a@example.com", "hash")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryRefreshTokens(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())
	ctx := context.Background()

	pool.ExpectQuery(regexp.QuoteMeta(`SELECT user_id::text FROM refresh_tokens`)).
		WithArgs("expired").
		WillReturnError(pgx.ErrNoRows)
	pool.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = now() WHERE token = $1`)).
		WithArgs("tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err = repo.ValidateRefreshTokenAndGetUserID(ctx, "expired")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.NoError(t, repo.InvalidateRefreshToken(ctx, "tok"))
	assert.NoError(t, pool.ExpectationsWereMet())
}
