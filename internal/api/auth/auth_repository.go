package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	database "github.com/FACorreiaa/go-eat-today/app/db"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

const uniqueViolation = "23505"

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
	// Register stores a new user with an already hashed password and returns its id.
	Register(ctx context.Context, username, email, hashedPassword string) (string, error)
	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error)
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.Querier
}

func NewRepositoryImpl(pgpool database.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) getUser(ctx context.Context, where string, arg any) (*types.UserAuth, error) {
	var u types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id::text, username, email, password_hash, created_at, updated_at FROM users WHERE `+where+` = $1`,
		arg).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

func (r *RepositoryImpl) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return r.getUser(ctx, "email", email)
}

func (r *RepositoryImpl) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	return r.getUser(ctx, "id", userID)
}

func (r *RepositoryImpl) Register(ctx context.Context, username, email, hashedPassword string) (string, error) {
	var id string
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id::text`,
		username, email, hashedPassword).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	r.logger.InfoContext(ctx, "User registered", slog.String("user_id", id))
	return id, nil
}

func (r *RepositoryImpl) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	err := r.pgpool.QueryRow(ctx, `
		SELECT user_id::text FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > now()`,
		refreshToken).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("failed to validate refresh token: %w", err)
	}
	return userID, nil
}

func (r *RepositoryImpl) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE token = $1 AND revoked_at IS NULL`,
		refreshToken)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
