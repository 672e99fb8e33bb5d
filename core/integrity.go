package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IntegrityRecord is the canonical record that is hashed and signed.
type IntegrityRecord struct {
	PublicKey      Address `json:"publicKey"`
	EncPayloadHash string  `json:"encPayloadHash"`
	PayloadHash    string  `json:"payloadHash"`
}

// IntegrityProof is a server-signed, content-derived proof of a payload.
type IntegrityProof struct {
	Record     IntegrityRecord `json:"record"`
	Canonical  string          `json:"canonical"`
	PayloadKey string          `json:"payloadKey"`
	Signature  string          `json:"signature"`
	Signer     Address         `json:"signer"`
}

// AnchorState is the outcome of anchoring a proof on the ledger.
type AnchorState string

const (
	AnchorAnchored AnchorState = "anchored"
	AnchorPending  AnchorState = "pending"
	AnchorFailed   AnchorState = "failed"
	AnchorDisabled AnchorState = "disabled"
)

// AnchorReceipt describes a mined ledger transaction.
type AnchorReceipt struct {
	TxHash      string          `json:"txHash"`
	BlockNumber uint64          `json:"blockNumber"`
	GasUsed     uint64          `json:"gasUsed"`
	Fee         decimal.Decimal `json:"fee"`
}

// AnchorOutcome pairs an anchoring state with its receipt when mined.
type AnchorOutcome struct {
	State   AnchorState    `json:"state"`
	Receipt *AnchorReceipt `json:"receipt,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// LedgerEntry is a raw presentation history entry as stored on chain.
type LedgerEntry struct {
	JSONString string
	Timestamp  int64 // seconds since epoch
}

// PresentationEntry is a presentation history entry with a wall-clock timestamp.
type PresentationEntry struct {
	Data      json.RawMessage `json:"jsonData"`
	Timestamp time.Time       `json:"timestamp"`
}
