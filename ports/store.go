package ports

import (
	"context"
	"time"
)

// Store is the key-value backend shared by sessions, challenges and credentials.
// Missing keys are reported as core.ErrNotFound; backend faults wrap core.ErrUpstream.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key only if it does not exist and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// CompareAndDelete atomically deletes key if it still holds expected.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LRem removes up to count occurrences of value, head to tail.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HReplace atomically replaces the whole hash at key with fields.
	HReplace(ctx context.Context, key string, fields map[string]string) error
	// HReplaceExisting is HReplace guarded on key still existing. It reports
	// whether the hash was replaced.
	HReplaceExisting(ctx context.Context, key string, fields map[string]string) (bool, error)

	Close() error
}
