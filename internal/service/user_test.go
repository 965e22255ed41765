package service

import (
	"context"
	"testing"
	"time"

	"github.com/sharepass/internal/auth"
	"github.com/sharepass/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService() *UserService {
	return NewUserService(memory.NewStore().Users(), []byte("test-secret"), time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice", "Alice@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "email нормализуется к нижнему регистру")
	assert.NotEqual(t, "password1", user.PasswordHash)

	got, token, err := svc.Login(ctx, "alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	userID, err := auth.UserIDFromToken(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@b.com", "password1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "Alice", "not-an-email", "password1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "Alice", "a@b.com", "short")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@b.com", "password1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Bob", "a@b.com", "password2")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginBadCredentials(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@b.com", "password1")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "a@b.com", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = svc.Login(ctx, "nobody@b.com", "password1")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("user-1", []byte("secret-a"), time.Hour)
	require.NoError(t, err)

	_, err = auth.UserIDFromToken(token, []byte("secret-b"))
	assert.Error(t, err)
}
