package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	existsErr error
	createErr error
	findErr   error
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	m.users[user.ID] = user
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "rollcall-api",
		BcryptCost:        bcrypt.MinCost,
	})
}

func registerRequest(username, email string) models.RegisterRequest {
	return models.RegisterRequest{Username: username, Email: email, Password: "secret1", ConfirmPassword: "secret1"}
}

func TestAuthServiceRegisterIssuesToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	resp, err := svc.Register(context.Background(), registerRequest(" alice ", "alice@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "alice", resp.User.Username)

	stored := repo.users[resp.User.ID]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	cases := map[string]models.RegisterRequest{
		"missing username": registerRequest("", "a@example.com"),
		"bad email":        registerRequest("alice", "not-an-email"),
		"short password":   {Username: "alice", Email: "a@example.com", Password: "abc", ConfirmPassword: "abc"},
		"mismatch":         {Username: "alice", Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret2"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestAuthServiceRegisterConflict(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerRequest("ALICE", "other@example.com"))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	repo.findErr = errors.New("db down")
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	resp, err := svc.Register(context.Background(), registerRequest("alice", "alice@example.com"))
	require.NoError(t, err)

	info, err := svc.Me(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)

	_, err = svc.Me(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	user := &models.User{ID: "u1", Username: "alice", Email: "a@example.com"}

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "rollcall-api"})
	foreign, err := other.generateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.generateAccessToken(user)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
