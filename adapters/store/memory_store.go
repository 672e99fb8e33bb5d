package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/wide/core"
)

var errWrongType = errors.New("operation against a key holding the wrong kind of value")

type entry struct {
	str       string
	list      []string
	hash      map[string]string
	kind      byte // 's', 'l' or 'h'
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the Store interface
// This is primarily intended for tests and single-process development
type MemoryStore struct {
	data map[string]*entry
	now  func() time.Time
	mu   sync.Mutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store whose TTLs are measured against now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  now,
	}
}

// lookup returns the live entry for key. Callers hold s.mu.
func (s *MemoryStore) lookup(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return "", core.ErrNotFound
	}
	if e.kind != 's' {
		return "", errWrongType
	}
	return e.str, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{kind: 's', str: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) != nil {
		return false, nil
	}
	s.data[key] = &entry{kind: 's', str: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(key) != nil, nil
}

func (s *MemoryStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil || e.kind != 's' || e.str != expected {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

func (s *MemoryStore) RPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: 'l'}
		s.data[key] = e
	}
	if e.kind != 'l' {
		return errWrongType
	}
	e.list = append(e.list, values...)
	return nil
}

// LRange follows Redis semantics: negative indexes count from the tail and
// out-of-range bounds are clamped.
func (s *MemoryStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != 'l' {
		return nil, errWrongType
	}

	n := int64(len(e.list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []string{}, nil
	}

	out := make([]string, stop-start+1)
	copy(out, e.list[start:stop+1])
	return out, nil
}

// LRem supports count >= 0 (head to tail, 0 meaning all).
func (s *MemoryStore) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return 0, nil
	}
	if e.kind != 'l' {
		return 0, errWrongType
	}

	var removed int64
	kept := e.list[:0]
	for _, v := range e.list {
		if v == value && (count == 0 || removed < count) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	e.list = kept
	if len(e.list) == 0 {
		delete(s.data, key)
	}
	return removed, nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil, core.ErrNotFound
	}
	if e.kind != 'h' {
		return nil, errWrongType
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fields) == 0 {
		delete(s.data, key)
		return nil
	}
	hash := make(map[string]string, len(fields))
	for k, v := range fields {
		hash[k] = v
	}
	s.data[key] = &entry{kind: 'h', hash: hash}
	return nil
}

func (s *MemoryStore) HReplaceExisting(ctx context.Context, key string, fields map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return false, nil
	}
	if e.kind != 'h' {
		return false, errWrongType
	}

	if len(fields) == 0 {
		delete(s.data, key)
		return true, nil
	}
	hash := make(map[string]string, len(fields))
	for k, v := range fields {
		hash[k] = v
	}
	s.data[key] = &entry{kind: 'h', hash: hash}
	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
