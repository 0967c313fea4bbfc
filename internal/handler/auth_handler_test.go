package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type fakeAuthSrv struct {
	register models.RegisterRequest
	resp     *models.AuthResponse
	info     *models.UserInfo
	meID     string
	err      error
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	f.register = req
	return f.resp, f.err
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return f.resp, f.err
}

func (f *fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	f.meID = userID
	return f.info, f.err
}

func TestAuthHandlerRegister(t *testing.T) {
	srv := &fakeAuthSrv{resp: &models.AuthResponse{Token: "tok", User: models.UserInfo{ID: "u1"}}}
	h := NewAuthHandler(srv)
	c, rec := newStudentContext(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "email": "a@example.com", "password": "secret1", "confirmPassword": "secret1",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "secret1", srv.register.ConfirmPassword)
	assert.Contains(t, string(decode(t, rec).Data), `"token":"tok"`)
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{err: appErrors.Clone(appErrors.ErrInvalidCredentials, "")})
	c, rec := newStudentContext(http.MethodPost, "/api/auth/login", map[string]string{"email": "a@example.com", "password": "nope"})

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec).Error.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	srv := &fakeAuthSrv{info: &models.UserInfo{ID: "owner-1", Username: "alice"}}
	h := NewAuthHandler(srv)
	c, rec := newStudentContext(http.MethodGet, "/api/auth/me", nil)

	h.Me(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", srv.meID)
}
