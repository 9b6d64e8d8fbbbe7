package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/database/testutil"
)

func newStore(t *testing.T) *cache.DatabaseStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewDatabaseStore(db)
	require.NotNil(t, store)
	return store
}

func key(prefix string) string {
	return prefix + ":" + uuid.NewString()
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("session")

	require.NoError(t, store.Set(ctx, k, []byte("payload"), time.Minute))

	value, found, err := store.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("payload"), value)

	require.NoError(t, store.Delete(ctx, k))

	_, found, err = store.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetMissingKey(t *testing.T) {
	store := newStore(t)

	_, found, err := store.Get(context.Background(), key("missing"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreSetOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("state")

	require.NoError(t, store.Set(ctx, k, []byte("first"), time.Minute))
	require.NoError(t, store.Set(ctx, k, []byte("second"), time.Minute))

	value, found, err := store.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second"), value)
}

func TestDatabaseStoreExpiredEntryIsGone(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("ephemeral")

	require.NoError(t, store.Set(ctx, k, []byte("payload"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreZeroTTLNeverExpires(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("durable")

	require.NoError(t, store.Set(ctx, k, []byte("payload"), 0))

	_, found, err := store.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("ratelimit")

	count, ttl, err := store.IncrementWithTTL(ctx, k, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, k, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestDatabaseStoreIncrementResetsAfterWindow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	k := key("ratelimit")

	count, _, err := store.IncrementWithTTL(ctx, k, time.Nanosecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	time.Sleep(5 * time.Millisecond)

	count, _, err = store.IncrementWithTTL(ctx, k, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
