package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/bmrk/internal/kv"
	"github.com/joestump/bmrk/internal/testutil"
)

func stores(t *testing.T) map[string]kv.Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]kv.Store{
		"memory": kv.NewMemory(),
		"sql":    kv.NewSQL(testutil.NewTestDB(t)),
		"redis":  kv.NewRedis(client),
	}
}

func TestStore_Contract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, kv.KeyCache)
			assert.ErrorIs(t, err, kv.ErrNotFound)

			require.NoError(t, s.Set(ctx, kv.KeyCache, []byte(`[1]`)))
			got, err := s.Get(ctx, kv.KeyCache)
			require.NoError(t, err)
			assert.Equal(t, `[1]`, string(got))

			// Last writer wins.
			require.NoError(t, s.Set(ctx, kv.KeyCache, []byte(`[2]`)))
			got, err = s.Get(ctx, kv.KeyCache)
			require.NoError(t, err)
			assert.Equal(t, `[2]`, string(got))

			// Identical rewrite is fine.
			require.NoError(t, s.Set(ctx, kv.KeyCache, []byte(`[2]`)))

			require.NoError(t, s.Remove(ctx, kv.KeyCache))
			_, err = s.Get(ctx, kv.KeyCache)
			assert.ErrorIs(t, err, kv.ErrNotFound)

			// Removing a missing key is not an error.
			assert.NoError(t, s.Remove(ctx, "never-set"))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	type entry struct {
		Captured int64 `json:"captured"`
	}
	require.NoError(t, kv.SetJSON(ctx, s, kv.KeyCacheTime, entry{Captured: 42}))

	var got entry
	require.NoError(t, kv.GetJSON(ctx, s, kv.KeyCacheTime, &got))
	assert.Equal(t, int64(42), got.Captured)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	assert.Error(t, kv.GetJSON(ctx, s, "broken", &got))
	assert.ErrorIs(t, kv.GetJSON(ctx, s, "missing", &got), kv.ErrNotFound)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedis_UnreachableIsNotNotFound(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	_, err := kv.NewRedis(client).Get(context.Background(), kv.KeySession)
	require.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := kv.NewRedis(client)
	require.NoError(t, s.Set(ctx, kv.KeySession, []byte(`{"access_token":"bm_a"}`)))

	got, err := mr.Get(kv.KeyPrefix + kv.KeySession)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"bm_a"}`, got)
	assert.False(t, mr.Exists(kv.KeySession))
	assert.Zero(t, mr.TTL(kv.KeyPrefix+kv.KeySession), "entries must not expire")
}
