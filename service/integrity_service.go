package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/ports"
)

// ProofVerification is the result of checking an integrity proof.
type ProofVerification struct {
	Valid      bool         `json:"valid"`
	PayloadKey string       `json:"payloadKey"`
	Signer     core.Address `json:"signer"`
}

// IntegrityService derives server-signed proofs of stored payloads and
// anchors them on the ledger.
type IntegrityService struct {
	signer   eth.Signer
	ledger   ports.Ledger
	eventPub ports.EventPublisher
	logger   *slog.Logger
}

// NewIntegrityService creates the pipeline. A nil ledger disables anchoring.
func NewIntegrityService(signer eth.Signer, ledger ports.Ledger, eventPub ports.EventPublisher, logger *slog.Logger) *IntegrityService {
	return &IntegrityService{
		signer:   signer,
		ledger:   ledger,
		eventPub: eventPub,
		logger:   orDefault(logger),
	}
}

// Signer returns the address proofs are signed with.
func (s *IntegrityService) Signer() core.Address {
	return core.AddressFrom(s.signer.Address())
}

// ComputeIntegrityProof canonicalizes {publicKey, encPayloadHash, payloadHash}
// and signs it with the server key. payloadHash is the client's hash of the
// plaintext; when empty the encrypted payload hash is used in its place.
func (s *IntegrityService) ComputeIntegrityProof(account core.Address, encryptedPayload json.RawMessage, payloadHash string) (*core.IntegrityProof, error) {
	encHash, err := eth.HashCanonical(encryptedPayload)
	if err != nil {
		return nil, fmt.Errorf("encrypted payload: %w: %v", core.ErrInvalidRequest, err)
	}
	if payloadHash == "" {
		payloadHash = encHash
	}

	record := core.IntegrityRecord{
		PublicKey:      account,
		EncPayloadHash: encHash,
		PayloadHash:    payloadHash,
	}
	canonical, err := eth.CanonicalizeValue(record)
	if err != nil {
		return nil, err
	}

	sig, err := s.signer.SignText(canonical)
	if err != nil {
		return nil, err
	}

	return &core.IntegrityProof{
		Record:     record,
		Canonical:  string(canonical),
		PayloadKey: eth.Keccak256Hex(canonical),
		Signature:  hexutil.Encode(sig),
		Signer:     s.Signer(),
	}, nil
}

// VerifyIntegrityProof recomputes the payload key of record and checks that
// signature was produced by the server key.
func (s *IntegrityService) VerifyIntegrityProof(record core.IntegrityRecord, signature string) (*ProofVerification, error) {
	canonical, err := eth.CanonicalizeValue(record)
	if err != nil {
		return nil, err
	}

	recovered, err := eth.RecoverTextHex(canonical, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	return &ProofVerification{
		Valid:      recovered == s.signer.Address(),
		PayloadKey: eth.Keccak256Hex(canonical),
		Signer:     core.AddressFrom(recovered),
	}, nil
}

// Anchor submits {payloadKey, signature} to the ledger and waits for the receipt.
// Re-anchoring the same proof is safe since payloadKey is content-derived.
func (s *IntegrityService) Anchor(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error) {
	if s.ledger == nil {
		return nil, core.ErrLedgerDisabled
	}
	return s.ledger.LogPayload(ctx, payloadKey, signature)
}

// AnchorProof anchors proof synchronously. On failure the proof is enqueued
// for retry and reported as pending; it is never rolled back.
func (s *IntegrityService) AnchorProof(ctx context.Context, proof *core.IntegrityProof) core.AnchorOutcome {
	outcome := s.anchorProof(ctx, proof)
	metrics.RecordAnchor(string(outcome.State))
	return outcome
}

func (s *IntegrityService) anchorProof(ctx context.Context, proof *core.IntegrityProof) core.AnchorOutcome {
	receipt, err := s.Anchor(ctx, proof.PayloadKey, proof.Signature)
	if errors.Is(err, core.ErrLedgerDisabled) {
		return core.AnchorOutcome{State: core.AnchorDisabled}
	}
	if err == nil {
		return core.AnchorOutcome{State: core.AnchorAnchored, Receipt: receipt}
	}

	s.logger.Warn("anchoring failed, enqueueing retry", "payload_key", proof.PayloadKey, "error", err)

	if pubErr := s.eventPub.PublishAnchorRequest(ctx, proof); pubErr != nil {
		s.logger.Error("failed to enqueue anchoring", "payload_key", proof.PayloadKey, "error", pubErr)
		return core.AnchorOutcome{State: core.AnchorFailed, Error: err.Error()}
	}
	return core.AnchorOutcome{State: core.AnchorPending, Error: err.Error()}
}
