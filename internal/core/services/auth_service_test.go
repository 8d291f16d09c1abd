package services

import (
	"context"
	"testing"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) (*AuthService, *testutil.Clock) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := &testutil.Clock{Now: testutil.T0}
	s := NewAuthService(db, config.JWTConfig{
		Secret:           "access-secret",
		RefreshSecret:    "refresh-secret",
		AccessTokenMins:  15,
		RefreshTokenDays: 7,
	}, clock.Func())
	s.bcryptCost = bcrypt.MinCost
	return s, clock
}

func register(t *testing.T, s *AuthService, username string) *AuthResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), &RegisterInput{
		Username: username,
		Email:    username + "@library.test",
		Name:     "Reader",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()

	resp := register(t, s, "ann")
	assert.Equal(t, string(domain.RoleUser), resp.User.Role)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := s.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "ann", claims.Username)

	_, err = s.Register(ctx, &RegisterInput{Username: "ann", Email: "other@library.test", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	_, err = s.Register(ctx, &RegisterInput{Username: "other", Email: "ANN@library.test", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	byName, err := s.Login(ctx, &LoginInput{Identifier: "ann", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, byName.User.ID)

	byEmail, err := s.Login(ctx, &LoginInput{Identifier: "Ann@Library.test", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, byEmail.User.ID)

	_, err = s.Login(ctx, &LoginInput{Identifier: "ann", Password: "wrong horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = s.Login(ctx, &LoginInput{Identifier: "nobody", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()

	cases := map[string]*RegisterInput{
		"username": {Username: "ab", Email: "ab@library.test", Password: "correct horse"},
		"email":    {Username: "abc", Email: "abc@nowhere", Password: "correct horse"},
		"password": {Username: "abc", Email: "abc@library.test", Password: "short"},
	}
	for field, input := range cases {
		_, err := s.Register(ctx, input)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestInactiveUserCannotLogin(t *testing.T) {
	s, _ := newAuth(t)
	resp := register(t, s, "ann")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", resp.User.ID).Update("is_active", false).Error)

	_, err := s.Login(context.Background(), &LoginInput{Identifier: "ann", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrUserInactive)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRefreshRotatesToken(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	first := register(t, s, "ann")

	second, err := s.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = s.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked, "a rotated token cannot be reused")

	_, err = s.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = s.Refresh(ctx, first.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "access tokens are signed with another secret")

	require.NoError(t, s.Logout(ctx, second.RefreshToken))
	_, err = s.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestLogoutAllAndPurge(t *testing.T) {
	s, clock := newAuth(t)
	ctx := context.Background()
	first := register(t, s, "ann")
	second, err := s.Login(ctx, &LoginInput{Identifier: "ann", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, s.LogoutAll(ctx, first.User.ID))
	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err := s.Refresh(ctx, token)
		assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	}

	clock.Advance(8 * domain.Day)
	purged, err := s.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
}

func TestStoredTokenExpiry(t *testing.T) {
	s, clock := newAuth(t)
	resp := register(t, s, "ann")

	clock.Advance(8 * domain.Day)
	_, err := s.Refresh(context.Background(), resp.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestMintAccessToken(t *testing.T) {
	s, _ := newAuth(t)
	register(t, s, "ann")

	token, err := s.MintAccessToken(context.Background(), "ann")
	require.NoError(t, err)
	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ann", claims.Username)

	_, err = s.MintAccessToken(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAdminUserManagement(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	users := NewUserService(repositories.NewUserRepository(s.db))
	admin := testutil.CreateAdmin(t, s.db)
	member := register(t, s, "ann").User

	role := string(domain.RoleAdmin)
	_, err := users.UpdateUserByAdmin(ctx, admin.ID, admin.ID, &UpdateUserByAdminInput{Role: &role})
	assert.ErrorIs(t, err, domain.ErrCannotChangeOwnRole)

	bogus := "LIBRARIAN"
	_, err = users.UpdateUserByAdmin(ctx, member.ID, admin.ID, &UpdateUserByAdminInput{Role: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	inactive := false
	updated, err := users.UpdateUserByAdmin(ctx, member.ID, admin.ID, &UpdateUserByAdminInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	assert.ErrorIs(t, users.DeleteUser(ctx, admin.ID, admin.ID), domain.ErrCannotDeleteSelf)
	require.NoError(t, users.DeleteUser(ctx, member.ID, admin.ID))
	_, err = users.GetUserByID(ctx, member.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	list, total, err := users.ListUsers(ctx, repositories.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestChangePassword(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	users := NewUserService(repositories.NewUserRepository(s.db))
	member := register(t, s, "ann").User

	err := users.ChangePassword(ctx, member.ID, &ChangePasswordInput{OldPassword: "wrong horse", NewPassword: "battery staple"})
	assert.ErrorIs(t, err, domain.ErrOldPasswordWrong)

	err = users.ChangePassword(ctx, member.ID, &ChangePasswordInput{OldPassword: "correct horse", NewPassword: "short"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	require.NoError(t, users.ChangePassword(ctx, member.ID, &ChangePasswordInput{OldPassword: "correct horse", NewPassword: "battery staple"}))
	_, err = s.Login(ctx, &LoginInput{Identifier: "ann", Password: "battery staple"})
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	s, _ := newAuth(t)
	ctx := context.Background()
	users := NewUserService(repositories.NewUserRepository(s.db))
	register(t, s, "ann")

	assert.ErrorIs(t, users.ResetPassword(ctx, "nobody", "battery staple"), domain.ErrUserNotFound)
	assert.ErrorIs(t, users.ResetPassword(ctx, "ann", "short"), domain.ErrBadRequest)

	require.NoError(t, users.ResetPassword(ctx, "ann", "battery staple"))
	_, err := s.Login(ctx, &LoginInput{Identifier: "ann", Password: "battery staple"})
	assert.NoError(t, err)
}
