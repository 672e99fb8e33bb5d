package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/ports"
)

const keyPrefix = "widesession:"

// KVStore keeps sessions in the key-value backend with a TTL equal to the
// remaining session lifetime.
type KVStore struct {
	store ports.Store
	now   func() time.Time
}

// NewKVStore creates a session store on top of a key-value backend
func NewKVStore(store ports.Store) ports.SessionStore {
	return &KVStore{store: store, now: time.Now}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *KVStore) Put(ctx context.Context, session *core.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired: %w", session.ID, core.ErrInvalidRequest)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.store.Set(ctx, key(session.ID), string(payload), ttl)
}

func (s *KVStore) Get(ctx context.Context, id string) (*core.Session, error) {
	raw, err := s.store.Get(ctx, key(id))
	if err != nil {
		return nil, err
	}

	var session core.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if session.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &session, nil
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	err := s.store.Del(ctx, key(id))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}
