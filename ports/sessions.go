package ports

import (
	"context"

	"github.com/layer-3/wide/core"
)

// SessionStore keeps server-side session state.
type SessionStore interface {
	// Put creates or replaces a session until its expiry.
	Put(ctx context.Context, session *core.Session) error
	// Get returns core.ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*core.Session, error)
	Delete(ctx context.Context, id string) error
}
