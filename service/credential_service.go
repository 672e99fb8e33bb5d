package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/ports"
)

// Reserved fields of a credential hash. User fields are stored as field:<name>.
const (
	fieldIssuer     = "issuer"
	fieldCredential = "credential"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
	fieldPrefix     = "field:"
)

// listPageSize bounds each index read while iterating.
const listPageSize = 64

// CredentialService stores owner-scoped credentials under content-derived ids.
// The per-account index holds ids only; issuer metadata is always resolved
// from the credential record.
type CredentialService struct {
	store  ports.Store
	logger *slog.Logger
	now    Clock
}

func NewCredentialService(store ports.Store, logger *slog.Logger) *CredentialService {
	return &CredentialService{
		store:  store,
		logger: orDefault(logger),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *CredentialService) WithClock(now Clock) *CredentialService {
	s.now = now
	return s
}

// IssueCredential persists a new credential and appends it to the account index.
func (s *CredentialService) IssueCredential(
	ctx context.Context,
	session *core.Session,
	account core.Address,
	issuer, payload json.RawMessage,
	fields []core.CredentialField,
) (*core.IssuedCredential, error) {
	if err := authorize(session, account); err != nil {
		return nil, err
	}
	start := time.Now()

	issued, err := s.issue(ctx, account, issuer, payload, fields)
	if err != nil {
		metrics.RecordOperation(metrics.OpStoreCredential, metrics.StatusError, time.Since(start))
		return nil, err
	}

	metrics.RecordOperation(metrics.OpStoreCredential, metrics.StatusSuccess, time.Since(start))
	return issued, nil
}

func (s *CredentialService) issue(
	ctx context.Context,
	account core.Address,
	issuer, payload json.RawMessage,
	fields []core.CredentialField,
) (*core.IssuedCredential, error) {
	canonicalIssuer, err := eth.Canonicalize(issuer)
	if err != nil {
		return nil, fmt.Errorf("issuer: %w: %v", core.ErrInvalidRequest, err)
	}

	nonce, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	id := eth.Keccak256Hex(canonicalIssuer, []byte(nonce))

	record, err := encodeRecord(canonicalIssuer, payload, fields, s.now())
	if err != nil {
		return nil, err
	}

	// The record is written before the index so the index never names a
	// missing record.
	if err := s.store.HReplace(ctx, credentialKey(account, id), record); err != nil {
		return nil, err
	}
	if err := s.store.RPush(ctx, issuedKey(account), id); err != nil {
		return nil, err
	}

	s.logger.Debug("credential issued", "account", account, "id", id)
	return &core.IssuedCredential{ID: id, Issuer: canonicalIssuer}, nil
}

// UpdateCredential replaces the payload and fields of an existing credential.
// The id and issuer metadata are left untouched.
func (s *CredentialService) UpdateCredential(
	ctx context.Context,
	session *core.Session,
	account core.Address,
	id string,
	payload json.RawMessage,
	fields []core.CredentialField,
) (*core.CredentialRecord, error) {
	if err := authorize(session, account); err != nil {
		return nil, err
	}

	key := credentialKey(account, id)
	current, err := s.store.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record, err := encodeRecord(json.RawMessage(current[fieldIssuer]), payload, fields, now)
	if err != nil {
		return nil, err
	}
	if createdAt, ok := current[fieldCreatedAt]; ok {
		record[fieldCreatedAt] = createdAt
	}
	record[fieldUpdatedAt] = now.UTC().Format(time.RFC3339Nano)

	// A delete landing after the read wins; the record is not recreated.
	replaced, err := s.store.HReplaceExisting(ctx, key, record)
	if err != nil {
		return nil, err
	}
	if !replaced {
		return nil, core.ErrNotFound
	}
	return decodeRecord(account, id, record)
}

// ListIssued returns the account index in issuance order. The sequence reads
// the backend lazily, page by page, each time it is ranged over.
func (s *CredentialService) ListIssued(ctx context.Context, session *core.Session, account core.Address) (iter.Seq2[core.IssuedCredential, error], error) {
	if err := authorize(session, account); err != nil {
		return nil, err
	}

	return func(yield func(core.IssuedCredential, error) bool) {
		for start := int64(0); ; start += listPageSize {
			ids, err := s.store.LRange(ctx, issuedKey(account), start, start+listPageSize-1)
			if err != nil {
				yield(core.IssuedCredential{}, err)
				return
			}

			for _, id := range ids {
				fields, err := s.store.HGetAll(ctx, credentialKey(account, id))
				if errors.Is(err, core.ErrNotFound) {
					s.logger.Warn("index entry without credential", "account", account, "id", id)
					continue
				}
				if err != nil {
					yield(core.IssuedCredential{}, err)
					return
				}
				if !yield(core.IssuedCredential{ID: id, Issuer: json.RawMessage(fields[fieldIssuer])}, nil) {
					return
				}
			}

			if len(ids) < listPageSize {
				return
			}
		}
	}, nil
}

// CollectIssued drains ListIssued into a slice.
func (s *CredentialService) CollectIssued(ctx context.Context, session *core.Session, account core.Address) ([]core.IssuedCredential, error) {
	seq, err := s.ListIssued(ctx, session, account)
	if err != nil {
		return nil, err
	}

	issued := []core.IssuedCredential{}
	for entry, err := range seq {
		if err != nil {
			return nil, err
		}
		issued = append(issued, entry)
	}
	return issued, nil
}

// GetCredential returns the full record for id or core.ErrNotFound.
func (s *CredentialService) GetCredential(ctx context.Context, session *core.Session, account core.Address, id string) (*core.CredentialRecord, error) {
	if err := authorize(session, account); err != nil {
		return nil, err
	}

	fields, err := s.store.HGetAll(ctx, credentialKey(account, id))
	if err != nil {
		return nil, err
	}
	return decodeRecord(account, id, fields)
}

// DeleteCredential removes the first index entry for id and the record.
// Deleting an unknown id is a no-op reported through DeleteResult.Deleted.
func (s *CredentialService) DeleteCredential(ctx context.Context, session *core.Session, account core.Address, id string) (*core.DeleteResult, error) {
	if err := authorize(session, account); err != nil {
		return nil, err
	}
	start := time.Now()

	removed, err := s.store.LRem(ctx, issuedKey(account), 1, id)
	if err != nil {
		metrics.RecordOperation(metrics.OpDeleteCredential, metrics.StatusError, time.Since(start))
		return nil, err
	}
	if err := s.store.Del(ctx, credentialKey(account, id)); err != nil {
		metrics.RecordOperation(metrics.OpDeleteCredential, metrics.StatusError, time.Since(start))
		return nil, err
	}

	metrics.RecordOperation(metrics.OpDeleteCredential, metrics.StatusSuccess, time.Since(start))
	return &core.DeleteResult{ID: id, Deleted: removed > 0}, nil
}

func encodeRecord(issuer, payload json.RawMessage, fields []core.CredentialField, now time.Time) (map[string]string, error) {
	if len(bytes.TrimSpace(payload)) == 0 || !json.Valid(payload) {
		return nil, fmt.Errorf("payload must be a json document: %w", core.ErrInvalidRequest)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return nil, fmt.Errorf("payload: %w: %v", core.ErrInvalidRequest, err)
	}
	// Stored payloads must admit an integrity proof.
	if _, err := eth.Canonicalize(payload); err != nil {
		return nil, fmt.Errorf("payload: %w: %v", core.ErrInvalidRequest, err)
	}

	record := map[string]string{
		fieldIssuer:     string(issuer),
		fieldCredential: compact.String(),
		fieldCreatedAt:  now.UTC().Format(time.RFC3339Nano),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("credential field without a name: %w", core.ErrInvalidRequest)
		}
		record[fieldPrefix+f.Name] = f.Value
	}
	return record, nil
}

func decodeRecord(account core.Address, id string, fields map[string]string) (*core.CredentialRecord, error) {
	record := &core.CredentialRecord{
		ID:      id,
		Account: account,
		Issuer:  json.RawMessage(fields[fieldIssuer]),
		Payload: json.RawMessage(fields[fieldCredential]),
		Fields:  make(map[string]string),
	}

	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, fieldPrefix); ok {
			record.Fields[name] = v
		}
	}

	if v, ok := fields[fieldCreatedAt]; ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("corrupt credential %s: %w", id, err)
		}
		record.CreatedAt = t
	}
	if v, ok := fields[fieldUpdatedAt]; ok {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("corrupt credential %s: %w", id, err)
		}
		record.UpdatedAt = t
	}

	return record, nil
}
