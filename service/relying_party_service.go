package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/ports"
)

// RelyingPartyService keeps the configuration documents of relying parties.
type RelyingPartyService struct {
	store ports.Store
}

func NewRelyingPartyService(store ports.Store) *RelyingPartyService {
	return &RelyingPartyService{store: store}
}

func normalizeDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || strings.ContainsAny(domain, ": /") {
		return "", fmt.Errorf("domain %q: %w", domain, core.ErrInvalidRequest)
	}
	return domain, nil
}

// GetConfig is public; it returns core.ErrNotFound for unknown domains.
func (s *RelyingPartyService) GetConfig(ctx context.Context, domain string) (*core.RelyingPartyConfig, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, relyingPartyKey(domain))
	if err != nil {
		return nil, err
	}
	return &core.RelyingPartyConfig{Domain: domain, Config: json.RawMessage(raw)}, nil
}

func (s *RelyingPartyService) SetConfig(ctx context.Context, session *core.Session, domain string, config json.RawMessage) error {
	if session == nil {
		return core.AuthFailure(core.ReasonSessionInvalid, nil)
	}
	domain, err := normalizeDomain(domain)
	if err != nil {
		return err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, config); err != nil {
		return fmt.Errorf("config: %w: %v", core.ErrInvalidRequest, err)
	}
	return s.store.Set(ctx, relyingPartyKey(domain), compact.String(), 0)
}

func (s *RelyingPartyService) DeleteConfig(ctx context.Context, session *core.Session, domain string) error {
	if session == nil {
		return core.AuthFailure(core.ReasonSessionInvalid, nil)
	}
	domain, err := normalizeDomain(domain)
	if err != nil {
		return err
	}
	return s.store.Del(ctx, relyingPartyKey(domain))
}
