package domain

import (
	"context"
	"math/big"
	"time"
)

// TradeConfig holds the per-monitor copy-trade parameters. It is immutable
// after construction.
type TradeConfig struct {
	// AmountIn is the fixed amount of the chain's native asset spent on every
	// copied purchase, in raw base units (lamports / wei).
	AmountIn *big.Int
	// FeeBuffer is added to AmountIn when checking the operator's spendable
	// balance, covering network fees.
	FeeBuffer *big.Int
	// SlippageBps is the swap slippage tolerance in basis points.
	SlippageBps int
	// SkipTokens are token addresses never classified as purchases or sells
	// (native asset, wrapped native, major stables).
	SkipTokens map[string]bool
}

// Required returns AmountIn + FeeBuffer, the minimum spendable balance for an
// attempt.
func (c TradeConfig) Required() *big.Int {
	out := new(big.Int).Set(c.AmountIn)
	if c.FeeBuffer != nil {
		out.Add(out, c.FeeBuffer)
	}
	return out
}

// TradeStatus is the terminal outcome of one copy-trade attempt.
type TradeStatus string

const (
	TradeSucceeded TradeStatus = "succeeded"
	TradeSkipped   TradeStatus = "skipped"
	TradeFailed    TradeStatus = "failed"
)

// SkipReason explains why an attempt was skipped before or during execution.
type SkipReason string

const (
	SkipAlreadyHeld       SkipReason = "already_held"
	SkipAccumulation      SkipReason = "accumulation"
	SkipInsufficientFunds SkipReason = "insufficient_funds"
	SkipNoRoute           SkipReason = "no_route"
)

// ExecutionResult describes the terminal outcome of executing one Purchase
// decision.
type ExecutionResult struct {
	Status     TradeStatus
	TxID       string
	SkipReason SkipReason
	Err        error
	Attempts   int
	// AmountOut is the actual resulting token balance read back on-chain
	// after a successful swap (not the quoted estimate).
	AmountOut string
	Duration  time.Duration
}

// CopyTrade is the persisted record of a terminal execution outcome, kept for
// operator history in the trade store and the S3 journal.
type CopyTrade struct {
	ID           string      `json:"id"`
	Chain        Chain       `json:"chain"`
	Token        string      `json:"token"`
	SourceWallet string      `json:"source_wallet"`
	SourceTxID   string      `json:"source_tx_id"`
	Status       TradeStatus `json:"status"`
	SkipReason   SkipReason  `json:"skip_reason,omitempty"`
	Error        string      `json:"error,omitempty"`
	TxID         string      `json:"tx_id,omitempty"`
	AmountIn     string      `json:"amount_in"`
	AmountOut    string      `json:"amount_out,omitempty"`
	Attempts     int         `json:"attempts"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// TradeStore persists terminal copy-trade outcomes. Write failures must never
// block or fail trade execution; callers log and move on.
type TradeStore interface {
	Insert(ctx context.Context, trade CopyTrade) error
	ListRecent(ctx context.Context, chain Chain, limit int) ([]CopyTrade, error)
}

// BlobWriter uploads an object to blob storage. Implemented by the S3 journal
// backend.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
