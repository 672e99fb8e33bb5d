package tokenizer

import (
	"testing"
	"time"

	"github.com/layer-3/wide/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T) *JWTTokenizer {
	key, err := GenerateKey()
	require.NoError(t, err)
	return NewJWTTokenizer(key).(*JWTTokenizer)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	tk := newTokenizer(t)
	now := time.Now().Truncate(time.Second)
	session := &core.Session{
		ID:        "5b0c7e9a-2f55-4c6a-9a0e-4a5a2b8f3f10",
		Address:   core.Address("0x71c7656ec7ab88b098defb751b7401b5f6d8976f"),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	token, err := tk.SessionToToken(session)
	require.NoError(t, err)

	parsed, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, parsed.ID)
	assert.Equal(t, session.Address, parsed.Address)
	assert.True(t, session.ExpiresAt.Equal(parsed.ExpiresAt))
	assert.True(t, session.CreatedAt.Equal(parsed.CreatedAt))
}

func TestTokenToSessionRejects(t *testing.T) {
	tk := newTokenizer(t)
	other := newTokenizer(t)
	now := time.Now()

	valid := &core.Session{
		ID:        "id",
		Address:   core.Address("0x71c7656ec7ab88b098defb751b7401b5f6d8976f"),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := tk.TokenToSession("not-a-token")
		reason, ok := core.ReasonOf(err)
		require.True(t, ok)
		assert.Equal(t, core.ReasonSessionInvalid, reason)
	})

	t.Run("foreign key", func(t *testing.T) {
		token, err := other.SessionToToken(valid)
		require.NoError(t, err)
		_, err = tk.TokenToSession(token)
		assert.ErrorIs(t, err, core.ErrAuthentication)
	})

	t.Run("expired", func(t *testing.T) {
		expired := *valid
		expired.CreatedAt = now.Add(-2 * time.Hour)
		expired.ExpiresAt = now.Add(-time.Hour)
		token, err := tk.SessionToToken(&expired)
		require.NoError(t, err)

		_, err = tk.TokenToSession(token)
		reason, ok := core.ReasonOf(err)
		require.True(t, ok)
		assert.Equal(t, core.ReasonSessionExpired, reason)
	})
}

func TestKeyEncoding(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	encoded, err := EncodeKey(key)
	require.NoError(t, err)

	parsed, err := ParseKey(encoded)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	_, err = ParseKey("zz")
	assert.Error(t, err)
}
