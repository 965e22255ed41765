package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sharepass/internal/model"
	"github.com/sharepass/internal/repository"
	"github.com/sharepass/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, store *memory.Store, expiresAt time.Time) *model.Session {
	t.Helper()
	sess := &model.Session{
		ID:        uuid.New().String(),
		Password:  uuid.New().String()[:6],
		DeviceID:  uuid.New().String(),
		IsActive:  true,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
	require.NoError(t, store.Create(context.Background(), sess))
	return sess
}

func seedBlock(t *testing.T, store *memory.Store, sessionID string, expiresAt time.Time) *model.TransferBlock {
	t.Helper()
	b := &model.TransferBlock{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
	require.NoError(t, store.CreateBlock(context.Background(), b))
	return b
}

func TestSweeperMarksExpiredBlocks(t *testing.T) {
	store := memory.NewStore()
	sweeper := NewSweeper(store, store, nil, 24*time.Hour)
	ctx := context.Background()

	sess := seedSession(t, store, time.Now().Add(24*time.Hour))
	seedBlock(t, store, sess.ID, time.Now().Add(-time.Hour))  // просрочен, в пределах грейса
	seedBlock(t, store, sess.ID, time.Now().Add(2*time.Hour)) // живой

	stats, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.BlocksMarked)
	assert.EqualValues(t, 0, stats.BlocksDeleted)
	assert.EqualValues(t, 0, stats.SessionsDeleted)

	// Повторный проход идемпотентен
	stats, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.BlocksMarked)
}

func TestSweeperDeletesPastGrace(t *testing.T) {
	store := memory.NewStore()
	blobs := newFakeBlobs()
	sweeper := NewSweeper(store, store, blobs, 24*time.Hour)
	ctx := context.Background()

	sess := seedSession(t, store, time.Now().Add(24*time.Hour))
	old := seedBlock(t, store, sess.ID, time.Now().Add(-48*time.Hour)) // за грейсом
	seedBlock(t, store, sess.ID, time.Now().Add(-time.Hour))           // в пределах грейса

	url, err := blobs.Save(ctx, "a.txt", "text/plain", strings.NewReader("data"))
	require.NoError(t, err)
	itemID := uuid.New().String()
	require.NoError(t, store.InsertFileItems(ctx, []model.FileItem{{
		ID:      itemID,
		BlockID: old.ID,
		Name:    "a.txt",
		URL:     url,
	}}))

	stats, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.BlocksDeleted)
	assert.Contains(t, blobs.deleted, url, "байты файлов удалённого блока должны чиститься")

	// Каскад забрал метаданные файла вместе с блоком
	_, err = store.GetFileItem(ctx, itemID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSweeperDeletesExpiredSessions(t *testing.T) {
	store := memory.NewStore()
	sweeper := NewSweeper(store, store, nil, 24*time.Hour)
	ctx := context.Background()

	dead := seedSession(t, store, time.Now().Add(-time.Hour))
	alive := seedSession(t, store, time.Now().Add(24*time.Hour))
	seedBlock(t, store, dead.ID, time.Now().Add(12*time.Hour))

	stats, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.SessionsDeleted)

	_, err = store.GetByID(ctx, dead.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.GetByID(ctx, alive.ID)
	assert.NoError(t, err)

	// Каскад: блоки удалённой сессии ушли вместе с ней
	blocks, err := store.ListBySession(ctx, dead.ID, time.Now())
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestSweeperRunPeriodicStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	sweeper := NewSweeper(store, store, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.RunPeriodic(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic не остановился по отмене контекста")
	}
}
