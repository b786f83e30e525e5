package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisSendLog) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log, err := NewRedisSendLog(client)
	require.NoError(t, err)
	return mr, log
}

func TestRedisSendLog_MarkAndExpire(t *testing.T) {
	mr, log := setupTestRedis(t)
	ctx := context.Background()

	seen, err := log.Seen(ctx, "cooldown|4|fire")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, log.Mark(ctx, "cooldown|4|fire", time.Minute))
	assert.True(t, mr.Exists(redisKeyPrefix+"cooldown|4|fire"))

	seen, err = log.Seen(ctx, "cooldown|4|fire")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = log.Seen(ctx, "cooldown|4|fire")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisSendLog_DrivesDispatcherCooldown(t *testing.T) {
	_, log := setupTestRedis(t)
	sink := &recordingSink{}
	d, err := NewDispatcher(sink, WithSendLog(log), WithCooldown(time.Hour))
	require.NoError(t, err)

	d.Notify(context.Background(), fireAlert("token"))
	d.Notify(context.Background(), fireAlert("token"))
	assert.Equal(t, 1, sink.count())
}

func TestRedisSendLog_ErrorsFailOpen(t *testing.T) {
	mr, log := setupTestRedis(t)
	sink := &recordingSink{}
	d, err := NewDispatcher(sink, WithSendLog(log), WithCooldown(time.Hour))
	require.NoError(t, err)

	mr.Close()
	d.Notify(context.Background(), fireAlert("token"))
	assert.Equal(t, 1, sink.count())
}

func TestMemorySendLog_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)}
	log := NewMemorySendLog(clock)
	ctx := context.Background()

	require.NoError(t, log.Mark(ctx, "k", time.Minute))
	seen, _ := log.Seen(ctx, "k")
	assert.True(t, seen)

	clock.Advance(time.Minute)
	seen, _ = log.Seen(ctx, "k")
	assert.False(t, seen)
}
