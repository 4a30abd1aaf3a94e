package services

import (
	"testing"
	"time"

	"commhub_backend/internal/auth"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthFixture(t *testing.T) (AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	return NewAuthService(users, testSecret, time.Hour), users
}

func TestRegister_IssuesValidToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Register(&dto.RegisterRequest{
		Email:          "alice@test.local",
		Password:       "correct horse",
		DisplayName:    "Alice",
		OrganizationID: testOrg,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@test.local", resp.User.Email)

	claims, err := auth.ParseToken(resp.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, testOrg, claims.OrganizationID)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Register(&dto.RegisterRequest{
		Email:          "alice@test.local",
		Password:       "short",
		DisplayName:    "Alice",
		OrganizationID: testOrg,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
}

func TestRegister_EmailTaken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	req := &dto.RegisterRequest{
		Email:          "alice@test.local",
		Password:       "correct horse",
		DisplayName:    "Alice",
		OrganizationID: testOrg,
	}
	_, err := svc.Register(req)
	require.NoError(t, err)

	_, err = svc.Register(req)
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)
	_, err := svc.Register(&dto.RegisterRequest{
		Email:          "alice@test.local",
		Password:       "correct horse",
		DisplayName:    "Alice",
		OrganizationID: testOrg,
	})
	require.NoError(t, err)

	resp, err := svc.Login(&dto.LoginRequest{Email: "alice@test.local", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = svc.Login(&dto.LoginRequest{Email: "alice@test.local", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown accounts are indistinguishable from wrong passwords.
	_, err = svc.Login(&dto.LoginRequest{Email: "nobody@test.local", Password: "whatever"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.add("alice", "Alice", testOrg)

	got, err := svc.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = svc.GetUser("nobody")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
