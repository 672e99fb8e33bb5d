package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   ports.Store
	advance func(d time.Duration)
}

func newFixtures(t *testing.T) map[string]func(t *testing.T) fixture {
	return map[string]func(t *testing.T) fixture{
		"memory": func(t *testing.T) fixture {
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			var mu sync.Mutex
			s := NewMemoryStoreWithClock(func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			})
			return fixture{store: s, advance: func(d time.Duration) {
				mu.Lock()
				defer mu.Unlock()
				now = now.Add(d)
			}}
		},
		"redis": func(t *testing.T) fixture {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client)
			t.Cleanup(func() { _ = s.Close() })
			return fixture{store: s, advance: mr.FastForward}
		},
	}
}

func TestStore(t *testing.T) {
	for name, build := range newFixtures(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get set ttl", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				_, err := f.store.Get(ctx, "missing")
				assert.ErrorIs(t, err, core.ErrNotFound)

				require.NoError(t, f.store.Set(ctx, "k", "v", time.Minute))
				v, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, "v", v)

				ok, err := f.store.Exists(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)

				f.advance(2 * time.Minute)
				_, err = f.store.Get(ctx, "k")
				assert.ErrorIs(t, err, core.ErrNotFound)
				ok, err = f.store.Exists(ctx, "k")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("setnx first writer wins", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				ok, err := f.store.SetNX(ctx, "k", "first", 0)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = f.store.SetNX(ctx, "k", "second", 0)
				require.NoError(t, err)
				assert.False(t, ok)

				v, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, "first", v)
			})

			t.Run("compare and delete", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				require.NoError(t, f.store.Set(ctx, "nonce", "abc", time.Minute))

				ok, err := f.store.CompareAndDelete(ctx, "nonce", "other")
				require.NoError(t, err)
				assert.False(t, ok)

				ok, err = f.store.CompareAndDelete(ctx, "nonce", "abc")
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = f.store.CompareAndDelete(ctx, "nonce", "abc")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("compare and delete is exclusive", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()
				require.NoError(t, f.store.Set(ctx, "nonce", "abc", time.Minute))

				var wins atomic.Int32
				var wg sync.WaitGroup
				for i := 0; i < 16; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						ok, err := f.store.CompareAndDelete(ctx, "nonce", "abc")
						if err == nil && ok {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, int32(1), wins.Load())
			})

			t.Run("lists", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				values, err := f.store.LRange(ctx, "list", 0, -1)
				require.NoError(t, err)
				assert.Empty(t, values)

				require.NoError(t, f.store.RPush(ctx, "list", "a", "b"))
				require.NoError(t, f.store.RPush(ctx, "list", "a", "c"))

				values, err = f.store.LRange(ctx, "list", 0, -1)
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "b", "a", "c"}, values)

				values, err = f.store.LRange(ctx, "list", 1, 2)
				require.NoError(t, err)
				assert.Equal(t, []string{"b", "a"}, values)

				n, err := f.store.LRem(ctx, "list", 1, "a")
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				values, err = f.store.LRange(ctx, "list", 0, -1)
				require.NoError(t, err)
				assert.Equal(t, []string{"b", "a", "c"}, values)

				n, err = f.store.LRem(ctx, "list", 1, "zzz")
				require.NoError(t, err)
				assert.Equal(t, int64(0), n)
			})

			t.Run("hashes", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				_, err := f.store.HGetAll(ctx, "h")
				assert.ErrorIs(t, err, core.ErrNotFound)

				require.NoError(t, f.store.HReplace(ctx, "h", map[string]string{"a": "1", "b": "2"}))
				require.NoError(t, f.store.HReplace(ctx, "h", map[string]string{"a": "3", "c": "4"}))

				fields, err := f.store.HGetAll(ctx, "h")
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"a": "3", "c": "4"}, fields)

				require.NoError(t, f.store.Del(ctx, "h"))
				_, err = f.store.HGetAll(ctx, "h")
				assert.ErrorIs(t, err, core.ErrNotFound)
			})

			t.Run("guarded hash replace", func(t *testing.T) {
				f := build(t)
				ctx := context.Background()

				replaced, err := f.store.HReplaceExisting(ctx, "h", map[string]string{"a": "1"})
				require.NoError(t, err)
				assert.False(t, replaced)
				_, err = f.store.HGetAll(ctx, "h")
				assert.ErrorIs(t, err, core.ErrNotFound, "a missing hash must not be created")

				require.NoError(t, f.store.HReplace(ctx, "h", map[string]string{"a": "1", "b": "2"}))
				replaced, err = f.store.HReplaceExisting(ctx, "h", map[string]string{"a": "3", "c": "4"})
				require.NoError(t, err)
				assert.True(t, replaced)

				fields, err := f.store.HGetAll(ctx, "h")
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"a": "3", "c": "4"}, fields)

				require.NoError(t, f.store.Del(ctx, "h"))
				replaced, err = f.store.HReplaceExisting(ctx, "h", map[string]string{"a": "5"})
				require.NoError(t, err)
				assert.False(t, replaced)
			})
		})
	}
}

func TestRedisStoreUpstreamFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStore(client)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Dial(context.Background(), "not a url")
	assert.Error(t, err)
}
