package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	guard := NewReplayGuard(client, time.Hour)
	ctx := context.Background()

	key := WebhookKey("webhook", "", "a1b2c3d4e5f6", "success")
	assert.Equal(t, "webhook:webhook:ticket:a1b2c3d4e5f6:SUCCESS", key)

	first, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, time.Hour, mr.TTL(key))

	require.NoError(t, guard.Release(ctx, key))
	retry, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, retry)

	mr.FastForward(2 * time.Hour)
	expired, err := guard.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestReplayGuard_DefaultTTLAndErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	guard := NewReplayGuard(client, 0)
	assert.Equal(t, DefaultTTL, guard.TTL)

	mr.Close()
	_, err := guard.Claim(context.Background(), "webhook:webhook:ticket:x:SUCCESS")
	assert.Error(t, err)
}

func TestWebhookKey_SeparatesDeliveries(t *testing.T) {
	assert.Equal(t, "webhook:stripe:id:evt_1:SUCCESS", WebhookKey("stripe", "evt_1", "a1b2c3d4e5f6", "success"))

	keys := map[string]bool{
		WebhookKey("webhook", "pay_1", "a1b2c3d4e5f6", "FAILED"): true,
		WebhookKey("webhook", "pay_2", "a1b2c3d4e5f6", "FAILED"): true,
		WebhookKey("webhook", "", "a1b2c3d4e5f6", "SUCCESS"):     true,
		WebhookKey("stripe", "", "a1b2c3d4e5f6", "SUCCESS"):      true,
		WebhookKey("stripe", "evt_1", "a1b2c3d4e5f6", "SUCCESS"): true,
	}
	assert.Len(t, keys, 5)
}
