// Package domain defines the core types shared across the mirrorbot: chains,
// watched wallets, wallet events, classification decisions, trade records, and
// the interfaces implemented by the storage and platform layers.
package domain

import "fmt"

// Chain identifies one of the supported blockchains. The chain completely
// partitions the holdings namespace; there is no cross-chain coupling.
type Chain string

const (
	ChainSolana Chain = "solana"
	ChainBase   Chain = "base"
)

// ParseChain converts a string into a Chain, validating it against the
// supported set.
func ParseChain(s string) (Chain, error) {
	switch Chain(s) {
	case ChainSolana, ChainBase:
		return Chain(s), nil
	default:
		return "", fmt.Errorf("domain: unsupported chain %q", s)
	}
}

// NativeSymbol returns the ticker of the chain's native asset, used in
// operator-facing messages.
func (c Chain) NativeSymbol() string {
	switch c {
	case ChainSolana:
		return "SOL"
	case ChainBase:
		return "ETH"
	default:
		return string(c)
	}
}

// NativeDecimals returns the number of base-unit decimals of the chain's
// native asset (lamports on Solana, wei on Base).
func (c Chain) NativeDecimals() int {
	switch c {
	case ChainSolana:
		return 9
	case ChainBase:
		return 18
	default:
		return 0
	}
}

// ExplorerTxURL returns a block-explorer link for a transaction ID on this
// chain.
func (c Chain) ExplorerTxURL(txID string) string {
	switch c {
	case ChainSolana:
		return "https://solscan.io/tx/" + txID
	case ChainBase:
		return "https://basescan.org/tx/" + txID
	default:
		return txID
	}
}

// WatchedWallet is an external address whose on-chain activity is mirrored.
// Wallets are created from configuration at startup and are immutable for the
// process lifetime.
type WatchedWallet struct {
	Label   string
	Address string
}

func (w WatchedWallet) String() string {
	if w.Label == "" {
		return w.Address
	}
	return fmt.Sprintf("%s (%s)", w.Label, w.Address)
}
