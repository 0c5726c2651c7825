package tableholds

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/constants"
)

var testKey = reservation.ReservationKey{BarID: "bar-1", Date: "2026-10-23", Time: "22:00"}

func newTestStore(t *testing.T) (*HoldStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHoldStore(client, 10*time.Minute), mr
}

func TestHoldStore_AcquireConflictAndRefresh(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	res, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.False(t, res.Refreshed)

	holdKey := constants.BuildHoldKey("bar-1", "2026-10-23", "22:00", "t1")
	got, err := mr.Get(holdKey)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, 10*time.Minute, mr.TTL(holdKey))

	res, err = store.Acquire(ctx, testKey, "t1", "bob")
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "alice", res.HolderID)

	mr.FastForward(time.Minute)
	res, err = store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.True(t, res.Refreshed)
	assert.Equal(t, 10*time.Minute, mr.TTL(holdKey))
}

func TestHoldStore_ReleaseOnlyByHolder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)

	released, err := store.Release(ctx, testKey, "t1", "bob")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = store.Release(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = store.Release(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")

	held, err := store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestHoldStore_HeldPrunesExpired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Acquire(ctx, testKey, "t2", "bob")
	require.NoError(t, err)
	mr.FastForward(5 * time.Minute)
	_, err = store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)

	held, err := store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []reservation.HeldTable{
		{TableID: "t1", HolderID: "alice"},
		{TableID: "t2", HolderID: "bob"},
	}, held)

	// t2 expires, the set survives because t1 refreshed its expiry
	mr.FastForward(6 * time.Minute)
	held, err = store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []reservation.HeldTable{{TableID: "t1", HolderID: "alice"}}, held)

	members, err := mr.Members(constants.BuildHoldSetKey("bar-1", "2026-10-23", "22:00"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, members)
}

func TestHoldStore_PruneKeepsHoldAcquiredSinceRead(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	setKey := constants.BuildHoldSetKey("bar-1", "2026-10-23", "22:00")

	_, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	_, err = store.Acquire(ctx, testKey, "t2", "alice")
	require.NoError(t, err)
	mr.FastForward(5 * time.Minute)
	_, err = store.Acquire(ctx, testKey, "t3", "carol")
	require.NoError(t, err)
	mr.FastForward(6 * time.Minute)

	// t1 and t2 looked expired to an earlier read; t1 is taken again before the prune
	_, err = store.Acquire(ctx, testKey, "t1", "bob")
	require.NoError(t, err)
	require.NoError(t, store.pruneExpired(ctx, testKey, []string{"t1", "t2"}))

	members, err := mr.Members(setKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, members)

	held, err := store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []reservation.HeldTable{
		{TableID: "t1", HolderID: "bob"},
		{TableID: "t3", HolderID: "carol"},
	}, held)
}

func TestHoldStore_HeldIsScopedToKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	other := testKey
	other.Time = "23:00"

	_, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	_, err = store.Acquire(ctx, other, "t1", "bob")
	require.NoError(t, err)

	held, err := store.Held(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []reservation.HeldTable{{TableID: "t1", HolderID: "bob"}}, held)
}

func TestHoldStore_ConsumeIsAllOrNothing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)
	_, err = store.Acquire(ctx, testKey, "t2", "bob")
	require.NoError(t, err)

	err = store.Consume(ctx, testKey, []string{"t1", "t2"}, "alice")
	assert.ErrorIs(t, err, ErrNotHeldByCaller)
	assert.Contains(t, err.Error(), "t2")

	held, err := store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Len(t, held, 2, "nothing consumed on failure")

	_, err = store.Acquire(ctx, testKey, "t3", "alice")
	require.NoError(t, err)
	require.NoError(t, store.Consume(ctx, testKey, []string{"t1", "t3"}, "alice"))

	held, err = store.Held(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []reservation.HeldTable{{TableID: "t2", HolderID: "bob"}}, held)
}

func TestHoldStore_Holders(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Acquire(ctx, testKey, "t1", "alice")
	require.NoError(t, err)

	holders, err := store.Holders(ctx, testKey, []string{"t1", "t9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t1": "alice"}, holders)
}

func TestHoldStore_PreloadScripts(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.PreloadScripts(context.Background()))

	res, err := store.Acquire(context.Background(), testKey, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}
