package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/ports"
)

const (
	TopicSignIn  = "wide.auth.signin"
	TopicSignOut = "wide.auth.signout"
	TopicAnchor  = "wide.integrity.anchor"
)

// SessionEvent is published on sign-in and sign-out
type SessionEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// AnchorRequest is an integrity proof waiting to be anchored.
type AnchorRequest struct {
	PayloadKey string    `json:"payload_key"`
	Signature  string    `json:"signature"`
	Signer     string    `json:"signer"`
	QueuedAt   time.Time `json:"queued_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) PublishSignIn(ctx context.Context, address core.Address, sessionID string) error {
	return p.publishSession(ctx, TopicSignIn, address, sessionID)
}

func (p *WatermillPublisher) PublishSignOut(ctx context.Context, address core.Address, sessionID string) error {
	return p.publishSession(ctx, TopicSignOut, address, sessionID)
}

func (p *WatermillPublisher) publishSession(ctx context.Context, topic string, address core.Address, sessionID string) error {
	event := SessionEvent{
		Address:   address.String(),
		SessionID: sessionID,
		At:        time.Now().UTC(),
	}
	return p.publish(ctx, topic, watermill.NewUUID(), event)
}

// PublishAnchorRequest uses the payload key as message id so duplicates of the
// same proof are recognisable downstream.
func (p *WatermillPublisher) PublishAnchorRequest(ctx context.Context, proof *core.IntegrityProof) error {
	req := AnchorRequest{
		PayloadKey: proof.PayloadKey,
		Signature:  proof.Signature,
		Signer:     proof.Signer.String(),
		QueuedAt:   time.Now().UTC(),
	}
	return p.publish(ctx, TopicAnchor, proof.PayloadKey, req)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishSignIn(context.Context, core.Address, string) error  { return nil }
func (NopPublisher) PublishSignOut(context.Context, core.Address, string) error { return nil }
func (NopPublisher) PublishAnchorRequest(context.Context, *core.IntegrityProof) error {
	return fmt.Errorf("anchoring outbox disabled: %w", core.ErrUpstream)
}
