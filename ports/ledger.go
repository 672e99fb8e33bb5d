package ports

import (
	"context"

	"github.com/layer-3/wide/core"
)

// Ledger is the append-only on-chain log.
type Ledger interface {
	LogPayload(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error)
	LogPresentation(ctx context.Context, historyKey, jsonString string) (*core.AnchorReceipt, error)
	GetPresentationHistory(ctx context.Context, historyKey string) ([]core.LedgerEntry, error)
}
