package core

import (
	"encoding/json"
	"time"
)

// CredentialField is a single named encrypted field of a credential.
type CredentialField struct {
	Name  string `json:"name"`
	Value string `json:"val"`
}

// CredentialRecord is a stored credential owned by an account.
// ID is content-derived and never changes across updates.
type CredentialRecord struct {
	ID        string            `json:"id"`
	Account   Address           `json:"account"`
	Issuer    json.RawMessage   `json:"issuer"`
	Payload   json.RawMessage   `json:"payload"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// IssuedCredential is an entry of the per-account issuance index, with issuer
// metadata resolved from the record itself.
type IssuedCredential struct {
	ID     string          `json:"id"`
	Issuer json.RawMessage `json:"issuer"`
}

// DeleteResult reports the outcome of a credential deletion. A delete of an
// unknown id is a no-op, not an error.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// RelyingPartyConfig is the opaque configuration document of a relying party.
type RelyingPartyConfig struct {
	Domain string          `json:"domain"`
	Config json.RawMessage `json:"config"`
}
