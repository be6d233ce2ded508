package imq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hemant/imq/internal/base"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestListKeyFromExpiredKey(t *testing.T) {
	listKey, ok := listKeyFromExpiredKey("imq:orders:abc123:ttl")
	require.True(t, ok)
	assert.Equal(t, "imq:orders", listKey)

	_, ok = listKeyFromExpiredKey("imq:orders:abc123")
	assert.False(t, ok)

	_, ok = listKeyFromExpiredKey("not-a-ttl-key")
	assert.False(t, ok)
}

func TestOwnWatchMutualExclusion(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := newTestConfig(t, srv)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	entryA := &watcherEntry{cfg: cfg, client: client}
	entryB := &watcherEntry{cfg: cfg, client: client}

	wonA, err := entryA.ownWatch(ctx)
	require.NoError(t, err)
	wonB, err := entryB.ownWatch(ctx)
	require.NoError(t, err)

	assert.True(t, wonA)
	assert.False(t, wonB)
}

func TestEvalMoveDelayedPromotesDueEnvelopes(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	registry := newScriptRegistry()
	require.NoError(t, registry.loadAll(ctx, client))

	delayedKey := base.DelayedKey("imq", "orders")
	listKey := base.ListKey("imq", "orders")

	now := time.Now()
	require.NoError(t, client.ZAdd(ctx, delayedKey, redis.Z{
		Score: float64(now.Add(-time.Second).UnixMilli()), Member: "due-1",
	}).Err())
	require.NoError(t, client.ZAdd(ctx, delayedKey, redis.Z{
		Score: float64(now.Add(time.Hour).UnixMilli()), Member: "not-due-1",
	}).Err())

	moved, err := registry.evalMoveDelayed(ctx, client, delayedKey, listKey, now.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	items, err := client.LRange(ctx, listKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"due-1"}, items)

	remaining, err := client.ZCard(ctx, delayedKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestSweepOnceRescuesExpiredWorkerLists(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	cfg := Config{Prefix: "imq"}.withDefaults()
	listKey := base.ListKey(cfg.Prefix, "orders")

	stalledKey := base.WorkerKey(cfg.Prefix, "orders", "worker-1", time.Now().Add(-time.Second).UnixMilli())
	freshKey := base.WorkerKey(cfg.Prefix, "orders", "worker-2", time.Now().Add(time.Hour).UnixMilli())

	require.NoError(t, client.LPush(ctx, stalledKey, "stalled-msg").Err())
	require.NoError(t, client.LPush(ctx, freshKey, "fresh-msg").Err())

	entry := &watcherEntry{cfg: cfg, client: client}
	limiter := rate.NewLimiter(rate.Limit(100), 1)
	require.NoError(t, entry.sweepOnce(ctx, limiter))

	rescued, err := client.LRange(ctx, listKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"stalled-msg"}, rescued)

	assert.False(t, srv.Exists(stalledKey))
	assert.True(t, srv.Exists(freshKey))
}
