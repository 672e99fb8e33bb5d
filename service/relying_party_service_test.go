package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/layer-3/wide/adapters/store"
	"github.com/layer-3/wide/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelyingPartyConfig(t *testing.T) {
	svc := NewRelyingPartyService(store.NewMemoryStore())
	w := newWallet(t)
	ctx := context.Background()

	_, err := svc.GetConfig(ctx, "dmv.example")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, svc.SetConfig(ctx, w.session(), "DMV.example", json.RawMessage(`{ "requested": ["age"] }`)))

	cfg, err := svc.GetConfig(ctx, "dmv.example")
	require.NoError(t, err)
	assert.Equal(t, "dmv.example", cfg.Domain)
	assert.Equal(t, `{"requested":["age"]}`, string(cfg.Config))

	require.NoError(t, svc.DeleteConfig(ctx, w.session(), "dmv.example"))
	_, err = svc.GetConfig(ctx, "dmv.example")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRelyingPartyConfigValidation(t *testing.T) {
	svc := NewRelyingPartyService(store.NewMemoryStore())
	w := newWallet(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetConfig(ctx, nil, "dmv.example", json.RawMessage(`{}`)), core.ErrAuthentication)
	assert.ErrorIs(t, svc.DeleteConfig(ctx, nil, "dmv.example"), core.ErrAuthentication)
	assert.ErrorIs(t, svc.SetConfig(ctx, w.session(), "dmv.example", json.RawMessage(`{`)), core.ErrInvalidRequest)

	for _, domain := range []string{"", "  ", "a:b", "a/b"} {
		_, err := svc.GetConfig(ctx, domain)
		assert.ErrorIs(t, err, core.ErrInvalidRequest, domain)
	}
}
