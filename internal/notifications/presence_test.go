package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_MirrorsToRedis(t *testing.T) {
	rdb := newTestRedis(t)
	p := NewPresence(rdb)
	defer p.Stop()
	ctx := context.Background()

	p.Register(ctx, 5)
	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "5").Result()
	require.NoError(t, err)
	assert.True(t, isMember)
	assert.Positive(t, rdb.TTL(ctx, presenceLastSeenKeyNS+"5").Val())

	// Another instance's user shows up in the count.
	require.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "8").Err())
	assert.Equal(t, 2, p.OnlineCount(ctx))

	p.Unregister(ctx, 5)
	isMember, err = rdb.SIsMember(ctx, presenceOnlineSetKey, "5").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestPresence_ReapRemovesStaleMembers(t *testing.T) {
	rdb := newTestRedis(t)
	p := NewPresence(rdb)
	defer p.Stop()
	ctx := context.Background()

	p.Register(ctx, 1)
	require.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "44").Err())

	assert.Equal(t, 1, p.reapOnce(ctx))

	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "44").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
	assert.True(t, p.IsOnline(ctx, 1))
}
