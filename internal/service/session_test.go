package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/password"
	"github.com/sharepass/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denyAllLimiter всегда запрещает проверку пароля.
type denyAllLimiter struct{}

func (denyAllLimiter) CheckValidateLimit(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func newSessionService(t *testing.T) (*SessionService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewSessionService(store, nil, 24*time.Hour), store
}

func TestCreateOrGetNewSession(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "device-1", sess.DeviceID)
	assert.True(t, sess.IsActive)
	assert.True(t, password.Valid(sess.Password))
	assert.Equal(t, password.ForDevice("device-1"), sess.Password)
	assert.True(t, sess.ExpiresAt.After(time.Now()))
}

func TestCreateOrGetIdempotent(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	first, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)
	second, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Password, second.Password)
}

func TestCreateOrGetAfterExpiry(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	// Просроченная активная сессия устройства
	old := &model.Session{
		ID:        uuid.New().String(),
		Password:  password.ForDevice("device-1"),
		DeviceID:  "device-1",
		IsActive:  true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, old))

	// Детерминированный пароль всё ещё занят старой записью — сервис обязан
	// выдать новую сессию со случайным кодом, а не упасть
	fresh, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.True(t, password.Valid(fresh.Password))

	// Старая сессия погашена
	stored, err := store.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestCreateOrGetPasswordCollision(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	// Чужая сессия уже держит детерминированный код нашего устройства
	foreign := &model.Session{
		ID:        uuid.New().String(),
		Password:  password.ForDevice("device-1"),
		DeviceID:  "other-device",
		IsActive:  true,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, foreign))

	sess, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)
	assert.NotEqual(t, foreign.Password, sess.Password)
	assert.True(t, password.Valid(sess.Password))
}

func TestCreateOrGetEmptyDeviceID(t *testing.T) {
	svc, _ := newSessionService(t)
	_, err := svc.CreateOrGet(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateSuccessAndNormalization(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	created, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)

	// Ввод в нижнем регистре с пробелами должен находить ту же сессию
	raw := "  " + toLower(created.Password) + " "
	found, err := svc.Validate(ctx, raw, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestValidateUnknownPassword(t *testing.T) {
	svc, _ := newSessionService(t)
	_, err := svc.Validate(context.Background(), "ZZZZZ0", "1.2.3.4")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestValidateMalformedPassword(t *testing.T) {
	svc, _ := newSessionService(t)
	for _, pwd := range []string{"", "ABC", "ABCDEFG", "ABC!12"} {
		_, err := svc.Validate(context.Background(), pwd, "1.2.3.4")
		assert.ErrorIs(t, err, ErrValidation, "password %q", pwd)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	sess := &model.Session{
		ID:        uuid.New().String(),
		Password:  "ABC123",
		DeviceID:  "device-1",
		IsActive:  true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))

	_, err := svc.Validate(ctx, "ABC123", "1.2.3.4")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestValidateRateLimited(t *testing.T) {
	store := memory.NewStore()
	svc := NewSessionService(store, denyAllLimiter{}, 24*time.Hour)

	_, err := svc.Validate(context.Background(), "ABC123", "1.2.3.4")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGetValid(t *testing.T) {
	svc, store := newSessionService(t)
	ctx := context.Background()

	sess, err := svc.CreateOrGet(ctx, "device-1")
	require.NoError(t, err)

	got, err := svc.GetValid(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = svc.GetValid(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrSessionInvalid)

	// Погашенная сессия не проходит
	require.NoError(t, store.DeactivateByDeviceID(ctx, "device-1"))
	_, err = svc.GetValid(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
