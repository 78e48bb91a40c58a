package chatbot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreExpires(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "s1", State: StateAwaitingGender}))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingGender, got.State)

	got.State = StateAwaitingPhone
	again, _ := store.Get(ctx, "s1")
	assert.Equal(t, StateAwaitingGender, again.State, "Get returns a copy")

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Error(t, store.Save(ctx, &Session{}))
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisSessionStore(rdb, 10*time.Minute)
	ctx := context.Background()
	user := uuid.New()

	sess := &Session{
		ID:     "abc",
		UserID: user,
		State:  StateAwaitingPregnancy,
		Context: Context{
			Intent:      IntentBook,
			PatientName: "Ana Ruiz",
			Gender:      GenderFemale,
		},
	}
	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, 10*time.Minute, mr.TTL("chat_session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, StateAwaitingPregnancy, got.State)
	assert.Equal(t, GenderFemale, got.Context.Gender)
	assert.Equal(t, "Ana Ruiz", got.Context.PatientName)
	assert.Nil(t, got.Context.IsPregnant)

	mr.FastForward(11 * time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisSessionStore(rdb, 0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &Session{ID: "gone", State: StateAwaitingIntent}))
	assert.Equal(t, DefaultSessionTTL, mr.TTL("chat_session:gone"))

	require.NoError(t, store.Delete(ctx, "gone"))
	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, mr.Set("chat_session:bad", "{not json"))
	_, err := NewRedisSessionStore(rdb, 0).Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
