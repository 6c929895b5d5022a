package domain

import "math/big"

// DecisionKind enumerates the classifier's possible verdicts for one event.
type DecisionKind string

const (
	// DecisionPurchase means a watched wallet acquired a new token and the
	// acquisition should be copied.
	DecisionPurchase DecisionKind = "purchase"
	// DecisionSell means a watched wallet reduced a token position that the
	// operator currently holds. Sells trigger a notification only.
	DecisionSell DecisionKind = "sell"
	// DecisionIgnore means the event is noise: untouched wallets, skip-listed
	// tokens, airdrops, or no qualifying balance movement.
	DecisionIgnore DecisionKind = "ignore"
)

// Decision is the classifier's output for one wallet event.
type Decision struct {
	Kind   DecisionKind
	Token  string
	Wallet WatchedWallet
	// SourceTx is the transaction ID of the watched wallet's originating
	// trade, kept for trade-history records.
	SourceTx string
	// Amount is the watched wallet's balance increase (purchase) or decrease
	// (sell) in raw base units. Nil for Ignore.
	Amount *big.Int
	// Prior is the watched wallet's balance of Token before the event. A
	// positive Prior on a purchase means accumulation rather than an initial
	// entry.
	Prior *big.Int
}

// Ignore is the zero-value decision for events that require no action.
var Ignore = Decision{Kind: DecisionIgnore}
