package core

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address is an Ethereum account address in its canonical (lowercase hex) form.
// It is an identifier only; no account record is stored.
type Address string

// ParseAddress validates s as a 20-byte hex address and canonicalizes it.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return AddressFrom(common.HexToAddress(s)), nil
}

// AddressFrom canonicalizes a go-ethereum address.
func AddressFrom(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

// Common returns the go-ethereum representation of the address.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Checksum returns the EIP-55 mixed-case form used in signed messages.
func (a Address) Checksum() string {
	return a.Common().Hex()
}

func (a Address) String() string {
	return string(a)
}

// Purpose selects the statement of a challenge message.
type Purpose string

const (
	PurposeSignIn Purpose = "signin"
	PurposeSignUp Purpose = "signup"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeSignIn || p == PurposeSignUp
}

// Challenge represents an issued sign-in challenge
type Challenge struct {
	Address   Address   `json:"address"`   // Address the challenge was issued to
	Nonce     string    `json:"nonce"`     // Random single-use nonce embedded in the message
	Purpose   Purpose   `json:"purpose"`   // Sign-in or sign-up
	IssuedAt  time.Time `json:"issuedAt"`  // When the challenge was created
	ExpiresAt time.Time `json:"expiresAt"` // When the challenge expires
}

// Expired reports whether the challenge is no longer usable at now.
func (c *Challenge) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(c.IssuedAt) > window || now.After(c.ExpiresAt)
}

// TermsAcceptance records when an address accepted the terms of service
type TermsAcceptance struct {
	Address    Address
	AcceptedAt time.Time
}

// Session represents an authenticated user session
type Session struct {
	ID        string    `json:"id"`         // Opaque session identifier
	Address   Address   `json:"address"`    // Address bound at verification time
	CreatedAt time.Time `json:"created_at"` // When the session was created
	ExpiresAt time.Time `json:"expires_at"` // When the session expires
}

// Expired reports whether the session has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
