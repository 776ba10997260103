package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandguard/internal/model"
)

// exerciseStore checks the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store, historySize int) {
	ctx := context.Background()

	sess, err := store.Create(ctx, "keerthi")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "keerthi", sess.Username)

	other, err := store.Create(ctx, "keerthi")
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, other.Token)

	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "keerthi", got.Username)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < historySize+2; i++ {
		require.NoError(t, store.AppendHistory(ctx, sess.Token, Entry{
			Brand:   "Nvidia",
			Comment: string(rune('a' + i)),
			Label:   model.Positive,
			Risk:    model.RiskLow,
		}))
	}
	history, err := store.History(ctx, sess.Token)
	require.NoError(t, err)
	require.Len(t, history, historySize)
	assert.Equal(t, "c", history[0].Comment)
	assert.Equal(t, string(rune('a'+historySize+1)), history[historySize-1].Comment)

	otherHistory, err := store.History(ctx, other.Token)
	require.NoError(t, err)
	assert.Empty(t, otherHistory)

	assert.ErrorIs(t, store.AppendHistory(ctx, "missing", Entry{}), ErrNotFound)

	require.NoError(t, store.Delete(ctx, sess.Token))
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.History(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice, or deleting nothing, is fine.
	assert.NoError(t, store.Delete(ctx, sess.Token))
	assert.NoError(t, store.Delete(ctx, "missing"))

	require.NoError(t, store.Delete(ctx, other.Token))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(Options{HistorySize: 3})
	exerciseStore(t, store, 3)
	assert.Zero(t, store.Len())
}

func TestMemoryStoreDefaultHistorySize(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, Options{}.historySize())
	assert.Equal(t, 7, Options{HistorySize: 7}.historySize())
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(Options{TTL: time.Minute})
	store.now = func() time.Time { return now }

	sess, err := store.Create(ctx, "ana")
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	_, err = store.Get(ctx, sess.Token)
	require.NoError(t, err, "access within the TTL")

	// The previous access refreshed the idle timer.
	now = now.Add(50 * time.Second)
	_, err = store.Get(ctx, sess.Token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStoreWithoutTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store := NewMemoryStore(Options{})
	store.now = func() time.Time { return now }

	sess, err := store.Create(ctx, "ana")
	require.NoError(t, err)

	now = now.Add(365 * 24 * time.Hour)
	_, err = store.Get(ctx, sess.Token)
	assert.NoError(t, err)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "brandguard:session:abc", sessionKey("abc"))
	assert.Equal(t, "brandguard:session:abc:history", historyKey("abc"))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := OpenRedis(context.Background(), RedisOptions{Address: mr.Addr()}, Options{HistorySize: 4, TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store, 4)
	assert.Empty(t, mr.Keys())
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), Options{TTL: time.Minute})
	defer store.Close()

	sess, err := store.Create(ctx, "ana")
	require.NoError(t, err)
	require.NoError(t, store.AppendHistory(ctx, sess.Token, Entry{Brand: "Nvidia", Label: model.Neutral}))
	assert.Equal(t, time.Minute, mr.TTL(sessionKey(sess.Token)))
	assert.Equal(t, time.Minute, mr.TTL(historyKey(sess.Token)))

	mr.FastForward(50 * time.Second)
	_, err = store.Get(ctx, sess.Token)
	require.NoError(t, err, "access within the TTL")

	// The previous access refreshed both keys.
	mr.FastForward(50 * time.Second)
	history, err := store.History(ctx, sess.Token)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	mr.FastForward(time.Minute + time.Second)
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(historyKey(sess.Token)))
}

func TestRedisStoreWithoutTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), Options{})
	defer store.Close()

	sess, err := store.Create(ctx, "ana")
	require.NoError(t, err)
	assert.Zero(t, mr.TTL(sessionKey(sess.Token)))

	mr.FastForward(365 * 24 * time.Hour)
	_, err = store.Get(ctx, sess.Token)
	assert.NoError(t, err)
}

func TestOpenRedisGivesUpWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := OpenRedis(ctx, RedisOptions{Address: addr}, Options{})
	assert.Error(t, err)
}
