// Package siwe builds and parses EIP-4361 Sign-In with Ethereum messages.
//
// A Message renders to the exact byte sequence a wallet signs, so a verifier
// holding the same fields reproduces the signed text. Timestamps are kept as
// the strings that appear in the message for the same reason.
package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"

	uriTag       = "URI: "
	versionTag   = "Version: "
	chainIDTag   = "Chain ID: "
	nonceTag     = "Nonce: "
	issuedAtTag  = "Issued At: "
	expiryTag    = "Expiration Time: "
	notBeforeTag = "Not Before: "
	requestIDTag = "Request ID: "
	resourcesTag = "Resources:"

	// TimeLayout matches the ISO-8601 form produced by JavaScript wallets.
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var ErrMalformed = errors.New("malformed sign-in message")

// Message is an EIP-4361 sign-in request.
type Message struct {
	Domain         string
	Address        common.Address
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       string
	ExpirationTime string
	NotBefore      string
	RequestID      string
	Resources      []string
}

// FormatTime renders t in the layout used for message timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// String renders the message text that is signed.
func (m *Message) String() string {
	var b strings.Builder

	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address.Hex() + "\n")
	b.WriteString("\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")

	b.WriteString(uriTag + m.URI + "\n")
	b.WriteString(versionTag + m.Version + "\n")
	b.WriteString(chainIDTag + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(nonceTag + m.Nonce + "\n")
	b.WriteString(issuedAtTag + m.IssuedAt)
	if m.ExpirationTime != "" {
		b.WriteString("\n" + expiryTag + m.ExpirationTime)
	}
	if m.NotBefore != "" {
		b.WriteString("\n" + notBeforeTag + m.NotBefore)
	}
	if m.RequestID != "" {
		b.WriteString("\n" + requestIDTag + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + resourcesTag)
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}

	return b.String()
}

// IssuedAtTime parses the Issued At field.
func (m *Message) IssuedAtTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.IssuedAt)
}

// ExpirationTimeValue parses the Expiration Time field, if present.
func (m *Message) ExpirationTimeValue() (time.Time, bool, error) {
	if m.ExpirationTime == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, m.ExpirationTime)
	return t, true, err
}

// Validate checks the fields a message must carry.
func (m *Message) Validate() error {
	switch {
	case m.Domain == "":
		return fmt.Errorf("%w: missing domain", ErrMalformed)
	case m.Address == (common.Address{}):
		return fmt.Errorf("%w: missing address", ErrMalformed)
	case strings.ContainsAny(m.Statement, "\n\r"):
		return fmt.Errorf("%w: statement must be a single line", ErrMalformed)
	case m.URI == "":
		return fmt.Errorf("%w: missing uri", ErrMalformed)
	case m.Version == "":
		return fmt.Errorf("%w: missing version", ErrMalformed)
	case len(m.Nonce) < 8 || !isAlphanumeric(m.Nonce):
		return fmt.Errorf("%w: nonce must be at least 8 alphanumeric characters", ErrMalformed)
	}
	if _, err := m.IssuedAtTime(); err != nil {
		return fmt.Errorf("%w: issued at: %v", ErrMalformed, err)
	}
	if _, _, err := m.ExpirationTimeValue(); err != nil {
		return fmt.Errorf("%w: expiration time: %v", ErrMalformed, err)
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
