package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/wide/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPubSub(t *testing.T) *gochannel.GoChannel {
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishSessionEvents(t *testing.T) {
	ps := newPubSub(t)
	ctx := context.Background()

	signIns, err := ps.Subscribe(ctx, TopicSignIn)
	require.NoError(t, err)
	signOuts, err := ps.Subscribe(ctx, TopicSignOut)
	require.NoError(t, err)

	pub := NewWatermillPublisher(ps)
	addr := core.Address("0x71c7656ec7ab88b098defb751b7401b5f6d8976f")

	require.NoError(t, pub.PublishSignIn(ctx, addr, "s1"))
	require.NoError(t, pub.PublishSignOut(ctx, addr, "s1"))

	var in, out SessionEvent
	require.NoError(t, json.Unmarshal(receive(t, signIns).Payload, &in))
	require.NoError(t, json.Unmarshal(receive(t, signOuts).Payload, &out))

	assert.Equal(t, addr.String(), in.Address)
	assert.Equal(t, "s1", in.SessionID)
	assert.Equal(t, "s1", out.SessionID)
}

func TestPublishAnchorRequest(t *testing.T) {
	ps := newPubSub(t)
	ctx := context.Background()

	requests, err := ps.Subscribe(ctx, TopicAnchor)
	require.NoError(t, err)

	proof := &core.IntegrityProof{PayloadKey: "0xkey", Signature: "0xsig", Signer: "0xsigner"}
	require.NoError(t, NewWatermillPublisher(ps).PublishAnchorRequest(ctx, proof))

	msg := receive(t, requests)
	assert.Equal(t, "0xkey", msg.UUID)

	var req AnchorRequest
	require.NoError(t, json.Unmarshal(msg.Payload, &req))
	assert.Equal(t, "0xkey", req.PayloadKey)
	assert.Equal(t, "0xsig", req.Signature)
}

type flakyAnchorer struct {
	mu       sync.Mutex
	failures int
	calls    []string
}

func (a *flakyAnchorer) Anchor(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, payloadKey)
	if a.failures > 0 {
		a.failures--
		return nil, errors.New("rpc unavailable")
	}
	return &core.AnchorReceipt{TxHash: "0xtx"}, nil
}

func (a *flakyAnchorer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func TestAnchorRouterRetries(t *testing.T) {
	ps := newPubSub(t)
	anchorer := &flakyAnchorer{failures: 2}

	router, err := NewAnchorRouter(ps, anchorer, AnchorConsumerConfig{
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()
	defer router.Close()

	proof := &core.IntegrityProof{PayloadKey: "0xkey", Signature: "0xsig"}
	require.NoError(t, NewWatermillPublisher(ps).PublishAnchorRequest(ctx, proof))

	assert.Eventually(t, func() bool { return anchorer.callCount() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestAnchorHandlerDropsMalformed(t *testing.T) {
	anchorer := &flakyAnchorer{}
	handler := AnchorHandler(anchorer, discardLogger())

	err := handler(message.NewMessage("id", []byte("{not json")))
	assert.NoError(t, err)
	assert.Equal(t, 0, anchorer.callCount())
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.PublishSignIn(context.Background(), "", ""))
	assert.ErrorIs(t, p.PublishAnchorRequest(context.Background(), &core.IntegrityProof{}), core.ErrUpstream)
}
