package domain

import "errors"

var (
	// ErrNoRoute means the quoting service found no viable route or liquidity
	// for the requested swap. Terminal; never retried.
	ErrNoRoute = errors.New("no route or liquidity")

	// ErrInsufficientFunds means the operator's spendable balance is below
	// the configured trade amount plus fee buffer. Terminal precondition.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrReverted means a submitted transaction finalized but reverted
	// on-chain. Treated as a transient failure and retried.
	ErrReverted = errors.New("transaction reverted")

	// ErrLedgerUnavailable flags a holdings-store failure. It does not block
	// trade success reporting but risks duplicate future purchases.
	ErrLedgerUnavailable = errors.New("holdings ledger unavailable")

	ErrNotFound     = errors.New("not found")
	ErrWSDisconnect = errors.New("websocket disconnected")
)

// IsTerminal reports whether err must not be retried by the execution state
// machine. Everything outside the terminal set (network errors, rejected
// submissions, reverts, liquidity races at submission time) is transient.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNoRoute) || errors.Is(err, ErrInsufficientFunds)
}
