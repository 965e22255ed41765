package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValidateLimit(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < validateLimitMax; i++ {
		ok, err := c.CheckValidateLimit(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "попытка %d должна проходить", i+1)
	}
	ok, err := c.CheckValidateLimit(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok, "сверх лимита — отказ")

	// Другой ключ не затронут
	ok, err = c.CheckValidateLimit(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPushSubscriptions(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.AddPushSubscription(ctx, "sess-1", "https://push/ep1", []byte(`{"endpoint":"https://push/ep1"}`)))
	require.NoError(t, c.AddPushSubscription(ctx, "sess-1", "https://push/ep2", []byte(`{"endpoint":"https://push/ep2"}`)))
	require.NoError(t, c.AddPushSubscription(ctx, "sess-2", "https://push/ep3", []byte(`{"endpoint":"https://push/ep3"}`)))

	subs, err := c.ListPushSubscriptions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	// Повторная подписка того же endpoint перезаписывает, не дублирует
	require.NoError(t, c.AddPushSubscription(ctx, "sess-1", "https://push/ep1", []byte(`{"endpoint":"https://push/ep1","v":2}`)))
	subs, err = c.ListPushSubscriptions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, c.RemovePushSubscription(ctx, "sess-1", "https://push/ep1"))
	subs, err = c.ListPushSubscriptions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	subs, err = c.ListPushSubscriptions(ctx, "sess-2")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
