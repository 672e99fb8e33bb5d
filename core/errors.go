package core

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrAuthorization    = errors.New("session is not authorized for this account")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrUpstream         = errors.New("upstream failure")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrLedgerDisabled   = errors.New("ledger is not configured")
)

// AuthReason discriminates why an authentication attempt was rejected.
type AuthReason string

const (
	ReasonTermsNotAccepted AuthReason = "terms_not_accepted"
	ReasonInvalidSignature AuthReason = "invalid_signature"
	ReasonMalformedMessage AuthReason = "malformed_message"
	ReasonMessageMismatch  AuthReason = "message_mismatch"
	ReasonNonceMissing     AuthReason = "nonce_missing"
	ReasonNonceMismatch    AuthReason = "nonce_mismatch"
	ReasonNonceExpired     AuthReason = "nonce_expired"
	ReasonNonceConsumed    AuthReason = "nonce_consumed"
	ReasonSessionInvalid   AuthReason = "session_invalid"
	ReasonSessionExpired   AuthReason = "session_expired"
)

// AuthError is a rejected authentication. It matches ErrAuthentication.
type AuthError struct {
	Reason AuthReason
	Err    error
}

// AuthFailure builds an AuthError for reason with an optional cause.
func AuthFailure(reason AuthReason, cause error) error {
	return &AuthError{Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthentication, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuthentication }

// ReasonOf extracts the AuthReason from err, if any.
func ReasonOf(err error) (AuthReason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}

// Upstream marks err as a backend or ledger failure during op.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
