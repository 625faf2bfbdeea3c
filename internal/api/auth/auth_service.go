package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-eat-today/config"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	// RefreshSession rotates the refresh token: the presented one is revoked
	// and a new pair is issued.
	RefreshSession(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	jwt    config.JWTConfig
	now    func() time.Time
}

func NewServiceImpl(repo Repository, cfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		jwt:    cfg,
		now:    time.Now,
	}
}

func (s *ServiceImpl) Register(ctx context.Context, username, email, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := s.repo.Register(ctx, strings.TrimSpace(username), strings.ToLower(strings.TrimSpace(email)), string(hashed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		return "", err
	}
	span.SetAttributes(attribute.String("user.id", id))
	return id, nil
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", "", ErrInvalidCredentials
		}
		span.RecordError(err)
		return "", "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Password mismatch", slog.String("user_id", user.ID))
		return "", "", ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RefreshSession")
	defer span.End()

	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		span.RecordError(err)
		return "", "", err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.InvalidateRefreshToken(ctx, refreshToken)
}

func (s *ServiceImpl) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *ServiceImpl) issueTokens(ctx context.Context, user *types.UserAuth) (string, string, error) {
	span := trace.SpanFromContext(ctx)
	now := s.now()

	claims := types.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.AccessTokenTTL)),
		},
	}
	if s.jwt.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.jwt.Audience}
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.SecretKey))
	if err != nil {
		span.RecordError(err)
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refreshToken, now.Add(s.jwt.RefreshTokenTTL)); err != nil {
		span.RecordError(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
