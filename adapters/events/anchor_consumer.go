package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/layer-3/wide/core"
)

// Anchorer anchors a proof on the ledger without re-enqueueing on failure.
type Anchorer interface {
	Anchor(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error)
}

// AnchorConsumerConfig tunes the retry behaviour of the outbox consumer.
type AnchorConsumerConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewAnchorRouter builds a watermill router that drains the anchoring outbox.
// Handler failures are retried with exponential backoff; a message that still
// fails is nacked back to the subscriber.
func NewAnchorRouter(
	subscriber message.Subscriber,
	anchorer Anchorer,
	cfg AnchorConsumerConfig,
	logger *slog.Logger,
) (*message.Router, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Minute
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialInterval,
			MaxInterval:     cfg.MaxInterval,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
	)

	router.AddNoPublisherHandler(
		"wide_anchor_retry",
		TopicAnchor,
		subscriber,
		AnchorHandler(anchorer, logger),
	)

	return router, nil
}

// AnchorHandler decodes an AnchorRequest and anchors it.
func AnchorHandler(anchorer Anchorer, logger *slog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var req AnchorRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			// A malformed request can never succeed; drop it.
			logger.Error("dropping malformed anchor request", "message_id", msg.UUID, "error", err)
			return nil
		}

		receipt, err := anchorer.Anchor(msg.Context(), req.PayloadKey, req.Signature)
		if err != nil {
			return fmt.Errorf("anchor %s: %w", req.PayloadKey, err)
		}

		logger.Info("anchored queued proof",
			"payload_key", req.PayloadKey,
			"tx_hash", receipt.TxHash,
			"queued_for", time.Since(req.QueuedAt).String())
		return nil
	}
}
