package siwe

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *Message {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Message{
		Domain:         "wid3.app",
		Address:        common.HexToAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F"),
		Statement:      "Sign in to WIDE.",
		URI:            "https://wid3.app",
		Version:        "1",
		ChainID:        0,
		Nonce:          "a1b2c3d4e5f6a7b8",
		IssuedAt:       FormatTime(issued),
		ExpirationTime: FormatTime(issued.Add(5 * time.Minute)),
	}
}

func TestMessageString(t *testing.T) {
	m := sampleMessage()
	expected := strings.Join([]string{
		"wid3.app wants you to sign in with your Ethereum account:",
		m.Address.Hex(),
		"",
		"Sign in to WIDE.",
		"",
		"URI: https://wid3.app",
		"Version: 1",
		"Chain ID: 0",
		"Nonce: a1b2c3d4e5f6a7b8",
		"Issued At: 2024-05-01T12:00:00.000Z",
		"Expiration Time: 2024-05-01T12:05:00.000Z",
	}, "\n")

	assert.Equal(t, expected, m.String())
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Message)
	}{
		{"full", func(m *Message) {}},
		{"no statement", func(m *Message) { m.Statement = "" }},
		{"no expiry", func(m *Message) { m.ExpirationTime = "" }},
		{"optional fields", func(m *Message) {
			m.NotBefore = m.IssuedAt
			m.RequestID = "req-1"
			m.Resources = []string{"https://wid3.app/terms", "ipfs://bafy"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleMessage()
			tt.mutate(m)

			parsed, err := Parse(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, parsed)
			assert.Equal(t, m.String(), parsed.String())
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	m := sampleMessage()
	good := m.String()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"bad header", strings.Replace(good, "wants you to sign in", "wants you to log in", 1)},
		{"bad address", strings.Replace(good, m.Address.Hex(), "0x1234", 1)},
		{"bad chain id", strings.Replace(good, "Chain ID: 0", "Chain ID: zero", 1)},
		{"short nonce", strings.Replace(good, "a1b2c3d4e5f6a7b8", "abc", 1)},
		{"bad issued at", strings.Replace(good, "Issued At: 2024-05-01T12:00:00.000Z", "Issued At: yesterday", 1)},
		{"trailing junk", good + "\nextra"},
		{"missing nonce", strings.Replace(good, "Nonce: a1b2c3d4e5f6a7b8\n", "", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestTimes(t *testing.T) {
	m := sampleMessage()
	issued, err := m.IssuedAtTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), issued)

	exp, ok, err := m.ExpirationTimeValue()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, issued.Add(5*time.Minute), exp)
}
