package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

func TestLoginHandler(t *testing.T) {
	t.Run("RejectsInvalidBody", func(t *testing.T) {
		h := NewHandlerImpl(NewServiceImpl(new(MockRepository), testJWTConfig(), slog.Default()), slog.Default())
		rr := httptest.NewRecorder()
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"not-an-email"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		repo := new(MockRepository)
		user := testUser(t, "password123")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil).Once()
		h := NewHandlerImpl(NewServiceImpl(repo, testJWTConfig(), slog.Default()), slog.Default())

		rr := httptest.NewRecorder()
		body := `{"email":"test@example.com","password":"wrong-password"}`
		h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		repo.AssertExpectations(t)
	})
}

func TestMeHandler(t *testing.T) {
	t.Run("ReturnsAccountWithoutPassword", func(t *testing.T) {
		repo := new(MockRepository)
		user := testUser(t, "password123")
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		h := NewHandlerImpl(NewServiceImpl(repo, testJWTConfig(), slog.Default()), slog.Default())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(WithUserID(req.Context(), user.ID))
		rr := httptest.NewRecorder()
		h.Me(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var got types.UserAuth
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, user.Email, got.Email)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("UnknownUser", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUserByID", mock.Anything, "gone").Return(nil, ErrUserNotFound).Once()
		h := NewHandlerImpl(NewServiceImpl(repo, testJWTConfig(), slog.Default()), slog.Default())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(WithUserID(req.Context(), "gone"))
		rr := httptest.NewRecorder()
		h.Me(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Anonymous", func(t *testing.T) {
		h := NewHandlerImpl(NewServiceImpl(new(MockRepository), testJWTConfig(), slog.Default()), slog.Default())
		rr := httptest.NewRecorder()
		h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
