package domain

import "context"

// Holding is a token the operator's wallet currently possesses, as recorded
// in the ledger. The ledger may lag actual on-chain state; balance checks
// reconcile the two.
type Holding struct {
	Chain  Chain
	Token  string
	Amount string // raw base units; empty when unknown
}

// HoldingsLedger is the durable mapping of (chain, token) to held/not-held.
// The ledger is the sole writer of truth for holdings; all components read
// and mutate through this contract only.
//
// Mutations are idempotent: adding an already-held token and removing an
// absent one are observable no-ops.
type HoldingsLedger interface {
	Add(ctx context.Context, chain Chain, token, amount string) error
	Remove(ctx context.Context, chain Chain, token string) error
	Has(ctx context.Context, chain Chain, token string) (bool, error)
	All(ctx context.Context, chain Chain) (map[string]string, error)
}
