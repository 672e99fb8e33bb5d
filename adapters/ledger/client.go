// Package ledger anchors integrity proofs and presentation events through the
// signature logger contract.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/ports"
	"github.com/shopspring/decimal"
)

var ErrTransactionReverted = errors.New("transaction reverted")

// Backend is the subset of ethclient.Client used by the ledger.
type Backend interface {
	bind.DeployBackend
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Config describes how to reach the contract.
type Config struct {
	Contract       common.Address
	ChainID        *big.Int
	ReceiptTimeout time.Duration
}

// Client is the go-ethereum implementation of ports.Ledger.
type Client struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	cfg     Config
	logger  *slog.Logger
}

// NewClient creates a ledger client that signs transactions with key.
func NewClient(backend Backend, key *ecdsa.PrivateKey, cfg Config, logger *slog.Logger) ports.Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	return &Client{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		cfg:     cfg,
		logger:  logger,
	}
}

func (c *Client) LogPayload(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error) {
	data, err := parsedABI.Pack("logPayload", PayloadSignaturePair{
		PayloadKey: payloadKey,
		Signature:  signature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack logPayload: %w", err)
	}
	return c.transact(ctx, metrics.OpLogPayload, data)
}

func (c *Client) LogPresentation(ctx context.Context, historyKey, jsonString string) (*core.AnchorReceipt, error) {
	data, err := parsedABI.Pack("logPresentation", historyKey, jsonString)
	if err != nil {
		return nil, fmt.Errorf("failed to pack logPresentation: %w", err)
	}
	return c.transact(ctx, metrics.OpLogPresentation, data)
}

func (c *Client) GetPresentationHistory(ctx context.Context, historyKey string) ([]core.LedgerEntry, error) {
	start := time.Now()

	data, err := parsedABI.Pack("getPresentationHistory", historyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getPresentationHistory: %w", err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.cfg.Contract,
		Data: data,
	}, nil)
	if err != nil {
		metrics.RecordOperation(metrics.OpLedgerRead, metrics.StatusError, time.Since(start))
		return nil, core.Upstream("call getPresentationHistory", err)
	}

	values, err := parsedABI.Unpack("getPresentationHistory", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack presentation history: %w", err)
	}
	records := *abi.ConvertType(values[0], new([]PresentationRecord)).(*[]PresentationRecord)

	entries := make([]core.LedgerEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, core.LedgerEntry{
			JSONString: r.JsonString,
			Timestamp:  r.Timestamp.Int64(),
		})
	}

	metrics.RecordOperation(metrics.OpLedgerRead, metrics.StatusSuccess, time.Since(start))
	return entries, nil
}

// transact estimates gas, prices, signs, broadcasts and waits for the receipt.
func (c *Client) transact(ctx context.Context, op string, data []byte) (*core.AnchorReceipt, error) {
	start := time.Now()

	receipt, err := c.send(ctx, data)
	if err != nil {
		metrics.RecordOperation(op, metrics.StatusError, time.Since(start))
		return nil, err
	}

	metrics.RecordOperation(op, metrics.StatusSuccess, time.Since(start))
	metrics.RecordGas(op, receipt.GasUsed, receipt.Fee)
	return receipt, nil
}

func (c *Client) send(ctx context.Context, data []byte) (*core.AnchorReceipt, error) {
	msg := ethereum.CallMsg{
		From: c.from,
		To:   &c.cfg.Contract,
		Data: data,
	}

	gasLimit, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, core.Upstream("estimate gas", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, core.Upstream("suggest gas price", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, core.Upstream("pending nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.cfg.Contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.cfg.ChainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, core.Upstream("send transaction", err)
	}

	c.logger.Debug("transaction sent", "tx_hash", signed.Hash().Hex(), "gas", gasLimit, "gas_price", gasPrice.String())

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		return nil, core.Upstream("wait for receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: %w", signed.Hash().Hex(), ErrTransactionReverted)
	}

	price := receipt.EffectiveGasPrice
	if price == nil {
		price = gasPrice
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)

	result := &core.AnchorReceipt{
		TxHash:  signed.Hash().Hex(),
		GasUsed: receipt.GasUsed,
		Fee:     decimal.NewFromBigInt(fee, -18),
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}
