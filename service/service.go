// Package service implements the authenticator, the credential store and the
// integrity pipeline on top of the ports.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/layer-3/wide/core"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func nonceKey(address core.Address) string {
	return "nonce:" + address.String()
}

func termsKey(address core.Address) string {
	return "termsofservice:" + address.String()
}

func historyKey(address core.Address) string {
	return "history:" + address.String() + ":key"
}

func issuedKey(address core.Address) string {
	return "account:" + address.String() + ":issued-credentials"
}

func credentialKey(address core.Address, id string) string {
	return "account:" + address.String() + ":credential:" + id
}

func relyingPartyKey(domain string) string {
	return "rp:" + domain + ":config"
}

// authorize checks that session is live and bound to account.
func authorize(session *core.Session, account core.Address) error {
	if session == nil {
		return core.AuthFailure(core.ReasonSessionInvalid, nil)
	}
	if session.Address != account {
		return fmt.Errorf("session of %s cannot access %s: %w", session.Address, account, core.ErrAuthorization)
	}
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
