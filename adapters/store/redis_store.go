package store

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/ports"
	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1], so a
// read value can be consumed exactly once.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// replaceExisting rewrites the hash at KEYS[1] from the ARGV field/value
// pairs, but only while the key exists.
var replaceExisting = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("DEL", KEYS[1])
if #ARGV > 0 then
	redis.call("HSET", KEYS[1], unpack(ARGV))
end
return 1
`)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store on an existing client.
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{client: client}
}

// Dial parses redisURL, connects and pings the server.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.Upstream("redis ping", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrNotFound
		}
		return "", core.Upstream("redis get", err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return core.Upstream("redis set", err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, core.Upstream("redis setnx", err)
	}
	return ok, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return core.Upstream("redis del", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, core.Upstream("redis exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return false, core.Upstream("redis compare-and-delete", err)
	}
	return n == 1, nil
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.client.RPush(ctx, key, args...).Err(); err != nil {
		return core.Upstream("redis rpush", err)
	}
	return nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, core.Upstream("redis lrange", err)
	}
	return values, nil
}

func (s *RedisStore) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	n, err := s.client.LRem(ctx, key, count, value).Result()
	if err != nil {
		return 0, core.Upstream("redis lrem", err)
	}
	return n, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, core.Upstream("redis hgetall", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return core.Upstream("redis hreplace", err)
	}
	return nil
}

func (s *RedisStore) HReplaceExisting(ctx context.Context, key string, fields map[string]string) (bool, error) {
	args := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}

	n, err := replaceExisting.Run(ctx, s.client, []string{key}, args...).Int64()
	if err != nil {
		return false, core.Upstream("redis hreplace-existing", err)
	}
	return n == 1, nil
}

// Client returns the Redis client
// This is used to share the connection with the Watermill publisher
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
