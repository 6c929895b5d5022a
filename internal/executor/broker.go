package executor

import (
	"context"
	"math/big"
)

// Quote is a priced route for swapping the chain's native asset into a token.
// Payload carries the chain-specific quote body that Build needs.
type Quote struct {
	EstimatedOut string
	Payload      any
}

// PreparedSwap is a prebuilt, unsigned transaction returned by the swap
// service.
type PreparedSwap struct {
	Payload any
}

// SignedSwap is a broadcastable signed transaction.
type SignedSwap struct {
	Payload any
}

// TradeBroker is the executor's boundary to one chain's quoting/execution
// collaborators. Each method corresponds to one state of the execution state
// machine, so the machine can be driven in tests by a fake broker with no
// network access.
//
// Quote must return domain.ErrNoRoute when the service signals no viable
// route or liquidity, distinct from generic failure. Confirm must return
// domain.ErrReverted for a finalized-but-reverted transaction.
type TradeBroker interface {
	Quote(ctx context.Context, token string) (Quote, error)
	Build(ctx context.Context, q Quote) (PreparedSwap, error)
	Sign(ctx context.Context, p PreparedSwap) (SignedSwap, error)
	Submit(ctx context.Context, s SignedSwap) (txID string, err error)
	Confirm(ctx context.Context, txID string) error

	// SpendableBalance is the operator's native-asset balance in base units.
	SpendableBalance(ctx context.Context) (*big.Int, error)
	// TokenBalance reads back the operator's actual balance of token after a
	// swap, in base units.
	TokenBalance(ctx context.Context, token string) (string, error)
}
