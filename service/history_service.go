package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/ports"
)

const consentTemplate = "I, holder of %s, am signing this message for WIDE to store my credential presentation history and understand that I will not share the message signature from this message with anyone other than WIDE."

// HistoryService manages history keys and the presentation log on the ledger.
type HistoryService struct {
	store  ports.Store
	ledger ports.Ledger
	logger *slog.Logger
}

// NewHistoryService creates the service. A nil ledger disables logging and
// retrieval of presentations; key registration still works.
func NewHistoryService(store ports.Store, ledger ports.Ledger, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		store:  store,
		ledger: ledger,
		logger: orDefault(logger),
	}
}

// ConsentMessage is the text an account signs to derive its history key.
func ConsentMessage(address core.Address) string {
	return fmt.Sprintf(consentTemplate, address.Checksum())
}

// DeriveHistoryKey hashes the lowercase address and the consent signature.
func DeriveHistoryKey(address core.Address, signature string) string {
	return eth.Keccak256String(strings.ToLower(address.String()) + ":" + signature)
}

// RegisterHistoryKey verifies the consent signature of account and stores the
// derived history key. The first registration wins; later attempts fail with
// core.ErrConflict and leave the stored key unchanged.
func (s *HistoryService) RegisterHistoryKey(ctx context.Context, session *core.Session, account core.Address, signature string) (string, error) {
	if err := authorize(session, account); err != nil {
		return "", err
	}

	recovered, err := eth.RecoverTextHex([]byte(ConsentMessage(account)), signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	if core.AddressFrom(recovered) != account {
		return "", fmt.Errorf("consent signed by %s: %w", core.AddressFrom(recovered), core.ErrInvalidSignature)
	}

	key := DeriveHistoryKey(account, signature)
	created, err := s.store.SetNX(ctx, historyKey(account), key, 0)
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("history key for %s: %w", account, core.ErrConflict)
	}

	s.logger.Info("history key registered", "account", account)
	return key, nil
}

// HistoryKey returns the registered key of account, or core.ErrNotFound.
func (s *HistoryService) HistoryKey(ctx context.Context, session *core.Session, account core.Address) (string, error) {
	if err := authorize(session, account); err != nil {
		return "", err
	}
	return s.store.Get(ctx, historyKey(account))
}

// LogPresentation appends data under historyKey with a ledger timestamp.
func (s *HistoryService) LogPresentation(ctx context.Context, historyKey string, data json.RawMessage) (*core.AnchorReceipt, error) {
	if s.ledger == nil {
		return nil, core.ErrLedgerDisabled
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("presentation: %w: %v", core.ErrInvalidRequest, err)
	}
	return s.ledger.LogPresentation(ctx, historyKey, compact.String())
}

// LogPresentationFor logs data under the history key registered by account.
func (s *HistoryService) LogPresentationFor(ctx context.Context, session *core.Session, account core.Address, data json.RawMessage) (*core.AnchorReceipt, error) {
	key, err := s.HistoryKey(ctx, session, account)
	if err != nil {
		return nil, err
	}
	return s.LogPresentation(ctx, key, data)
}

// RetrievePresentationHistory reads the log under historyKey and converts
// ledger timestamps (seconds) to UTC times.
func (s *HistoryService) RetrievePresentationHistory(ctx context.Context, historyKey string) ([]core.PresentationEntry, error) {
	if s.ledger == nil {
		return nil, core.ErrLedgerDisabled
	}

	raw, err := s.ledger.GetPresentationHistory(ctx, historyKey)
	if err != nil {
		return nil, err
	}

	entries := make([]core.PresentationEntry, 0, len(raw))
	for _, e := range raw {
		data := json.RawMessage(e.JSONString)
		if !json.Valid(data) {
			// Keep undecodable entries as JSON strings rather than dropping them
			quoted, _ := json.Marshal(e.JSONString)
			data = quoted
		}
		entries = append(entries, core.PresentationEntry{
			Data:      data,
			Timestamp: time.Unix(e.Timestamp, 0).UTC(),
		})
	}
	return entries, nil
}

// HistoryFor returns the presentation history of account and whether the
// account has registered a history key at all.
func (s *HistoryService) HistoryFor(ctx context.Context, session *core.Session, account core.Address) ([]core.PresentationEntry, bool, error) {
	key, err := s.HistoryKey(ctx, session, account)
	if errors.Is(err, core.ErrNotFound) {
		return []core.PresentationEntry{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	entries, err := s.RetrievePresentationHistory(ctx, key)
	if err != nil {
		return nil, true, err
	}
	return entries, true, nil
}
