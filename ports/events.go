package ports

import (
	"context"

	"github.com/layer-3/wide/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSignIn(ctx context.Context, address core.Address, sessionID string) error
	PublishSignOut(ctx context.Context, address core.Address, sessionID string) error
	// PublishAnchorRequest enqueues a proof whose anchoring must be retried.
	PublishAnchorRequest(ctx context.Context, proof *core.IntegrityProof) error
}
