package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/internal/siwe"
	"github.com/layer-3/wide/ports"
)

// AuthConfig holds the expected sign-in message fields and lifetimes.
type AuthConfig struct {
	Domain          string
	URI             string
	Version         string
	ChainID         int64
	SignInStatement string
	SignUpStatement string

	ChallengeWindow time.Duration
	// TermsTTL bounds how long an acceptance stays valid. Zero never expires.
	TermsTTL   time.Duration
	SessionTTL time.Duration
}

// SignInResult is an established session and the token carried by the client.
type SignInResult struct {
	Session *core.Session
	Token   string
}

// AuthService handles authentication business logic
type AuthService struct {
	store     ports.Store
	sessions  ports.SessionStore
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher

	cfg    AuthConfig
	logger *slog.Logger
	now    Clock
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.Store,
	sessions ports.SessionStore,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.ChallengeWindow <= 0 {
		cfg.ChallengeWindow = 5 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		sessions:  sessions,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		cfg:       cfg,
		logger:    orDefault(logger),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *AuthService) WithClock(now Clock) *AuthService {
	s.now = now
	return s
}

// Statement returns the statement text expected for purpose.
func (s *AuthService) Statement(purpose core.Purpose) string {
	if purpose == core.PurposeSignUp {
		return s.cfg.SignUpStatement
	}
	return s.cfg.SignInStatement
}

// IssueChallenge builds an unsigned sign-in message for address and stores
// its nonce for the challenge window. A sign-up challenge also records the
// acceptance of the terms of service.
func (s *AuthService) IssueChallenge(ctx context.Context, address core.Address, purpose core.Purpose) (*siwe.Message, error) {
	start := time.Now()

	msg, err := s.issueChallenge(ctx, address, purpose)
	if err != nil {
		metrics.RecordOperation(metrics.OpIssueChallenge, metrics.StatusError, time.Since(start))
		return nil, err
	}

	metrics.RecordOperation(metrics.OpIssueChallenge, metrics.StatusSuccess, time.Since(start))
	return msg, nil
}

func (s *AuthService) issueChallenge(ctx context.Context, address core.Address, purpose core.Purpose) (*siwe.Message, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, core.ErrInvalidRequest)
	}

	nonce, err := randomHex(16)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	challenge := core.Challenge{
		Address:   address,
		Nonce:     nonce,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.ChallengeWindow),
	}
	raw, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to encode challenge: %w", err)
	}

	if err := s.store.Set(ctx, nonceKey(address), string(raw), s.cfg.ChallengeWindow); err != nil {
		return nil, err
	}

	if purpose == core.PurposeSignUp {
		if err := s.store.Set(ctx, termsKey(address), now.Format(time.RFC3339Nano), s.cfg.TermsTTL); err != nil {
			return nil, err
		}
	}

	return &siwe.Message{
		Domain:         s.cfg.Domain,
		Address:        address.Common(),
		Statement:      s.Statement(purpose),
		URI:            s.cfg.URI,
		Version:        s.cfg.Version,
		ChainID:        s.cfg.ChainID,
		Nonce:          nonce,
		IssuedAt:       siwe.FormatTime(challenge.IssuedAt),
		ExpirationTime: siwe.FormatTime(challenge.ExpiresAt),
	}, nil
}

// TermsAccepted reports whether address holds a current terms acceptance.
func (s *AuthService) TermsAccepted(ctx context.Context, address core.Address) (bool, error) {
	acceptance, err := s.termsAcceptance(ctx, address)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !acceptance.AcceptedAt.After(s.now()), nil
}

func (s *AuthService) termsAcceptance(ctx context.Context, address core.Address) (*core.TermsAcceptance, error) {
	raw, err := s.store.Get(ctx, termsKey(address))
	if err != nil {
		return nil, err
	}
	acceptedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt terms acceptance for %s: %w", address, err)
	}
	return &core.TermsAcceptance{Address: address, AcceptedAt: acceptedAt}, nil
}

// RevokeTerms withdraws the terms acceptance of the session owner.
func (s *AuthService) RevokeTerms(ctx context.Context, session *core.Session) error {
	if session == nil {
		return core.AuthFailure(core.ReasonSessionInvalid, nil)
	}
	return s.store.Del(ctx, termsKey(session.Address))
}

// VerifyChallenge checks a signed challenge message and, when every check
// passes, consumes the nonce and establishes a session. The nonce is consumed
// with a compare-and-delete so that concurrent verifications of the same
// challenge cannot both succeed.
func (s *AuthService) VerifyChallenge(ctx context.Context, rawMessage, signature string, purpose core.Purpose) (*SignInResult, error) {
	start := time.Now()

	result, err := s.verifyChallenge(ctx, rawMessage, signature, purpose)
	if err != nil {
		if reason, ok := core.ReasonOf(err); ok {
			metrics.RecordAuthFailure(string(reason))
		}
		metrics.RecordOperation(metrics.OpVerifyChallenge, metrics.StatusError, time.Since(start))
		return nil, err
	}

	metrics.RecordOperation(metrics.OpVerifyChallenge, metrics.StatusSuccess, time.Since(start))
	return result, nil
}

func (s *AuthService) verifyChallenge(ctx context.Context, rawMessage, signature string, purpose core.Purpose) (*SignInResult, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, core.ErrInvalidRequest)
	}

	recovered, err := eth.RecoverTextHex([]byte(rawMessage), signature)
	if err != nil {
		return nil, core.AuthFailure(core.ReasonInvalidSignature, err)
	}
	address := core.AddressFrom(recovered)

	accepted, err := s.TermsAccepted(ctx, address)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, core.AuthFailure(core.ReasonTermsNotAccepted, nil)
	}

	msg, err := siwe.Parse(rawMessage)
	if err != nil {
		return nil, core.AuthFailure(core.ReasonMalformedMessage, err)
	}

	if err := s.checkMessage(msg, recovered.Hex(), purpose); err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, nonceKey(address))
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.AuthFailure(core.ReasonNonceMissing, nil)
	}
	if err != nil {
		return nil, err
	}

	var challenge core.Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return nil, fmt.Errorf("corrupt challenge for %s: %w", address, err)
	}

	now := s.now()
	if challenge.Nonce != msg.Nonce {
		return nil, core.AuthFailure(core.ReasonNonceMismatch, nil)
	}
	if challenge.Purpose != purpose {
		return nil, core.AuthFailure(core.ReasonMessageMismatch, fmt.Errorf("challenge was issued for %s", challenge.Purpose))
	}
	if challenge.Expired(now, s.cfg.ChallengeWindow) {
		return nil, core.AuthFailure(core.ReasonNonceExpired, nil)
	}

	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	// The nonce is consumed last so a failed sign-in leaves the challenge
	// usable. A session stored for a losing verification is withdrawn.
	consumed, err := s.store.CompareAndDelete(ctx, nonceKey(address), raw)
	if err != nil || !consumed {
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
			s.logger.Warn("failed to withdraw session", "session_id", session.ID, "error", delErr)
		}
		if err != nil {
			return nil, err
		}
		return nil, core.AuthFailure(core.ReasonNonceConsumed, nil)
	}

	if err := s.eventPub.PublishSignIn(ctx, address, session.ID); err != nil {
		s.logger.Warn("failed to publish sign-in event", "address", address, "error", err)
	}

	return &SignInResult{Session: session, Token: token}, nil
}

// checkMessage compares the structural fields of msg with the expected values.
// Timestamps are informational; freshness is enforced through the nonce.
func (s *AuthService) checkMessage(msg *siwe.Message, signer string, purpose core.Purpose) error {
	var mismatch string
	switch {
	case msg.Domain != s.cfg.Domain:
		mismatch = "domain"
	case msg.Address.Hex() != signer:
		mismatch = "address"
	case msg.Statement != s.Statement(purpose):
		mismatch = "statement"
	case msg.URI != s.cfg.URI:
		mismatch = "uri"
	case msg.Version != s.cfg.Version:
		mismatch = "version"
	case msg.ChainID != s.cfg.ChainID:
		mismatch = "chain id"
	default:
		return nil
	}
	return core.AuthFailure(core.ReasonMessageMismatch, fmt.Errorf("unexpected %s", mismatch))
}

// Authenticate resolves a session token to a live server-side session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Session, error) {
	claimed, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, claimed.ID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.AuthFailure(core.ReasonSessionInvalid, errors.New("session not found"))
	}
	if err != nil {
		return nil, err
	}

	if session.Address != claimed.Address {
		return nil, core.AuthFailure(core.ReasonSessionInvalid, errors.New("session address mismatch"))
	}
	if session.Expired(s.now()) {
		return nil, core.AuthFailure(core.ReasonSessionExpired, nil)
	}

	return session, nil
}

// SignOut destroys the session and any outstanding challenge of its owner.
func (s *AuthService) SignOut(ctx context.Context, session *core.Session) error {
	start := time.Now()

	if session == nil {
		return core.AuthFailure(core.ReasonSessionInvalid, nil)
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		metrics.RecordOperation(metrics.OpSignOut, metrics.StatusError, time.Since(start))
		return err
	}
	if err := s.store.Del(ctx, nonceKey(session.Address)); err != nil {
		metrics.RecordOperation(metrics.OpSignOut, metrics.StatusError, time.Since(start))
		return err
	}

	if err := s.eventPub.PublishSignOut(ctx, session.Address, session.ID); err != nil {
		// The session is already gone, which is the critical part
		s.logger.Warn("failed to publish sign-out event", "address", session.Address, "error", err)
	}

	metrics.RecordOperation(metrics.OpSignOut, metrics.StatusSuccess, time.Since(start))
	return nil
}
