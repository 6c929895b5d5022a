package domain

import "math/big"

// BalanceDelta is one token's balance movement for the watched wallet within
// a single transaction, expressed in raw base units.
type BalanceDelta struct {
	Token string
	Pre   *big.Int
	Post  *big.Int
}

// Increase reports whether the wallet's balance of this token grew.
func (d BalanceDelta) Increase() bool {
	return d.Post.Cmp(d.Pre) > 0
}

// Decrease reports whether the wallet's balance of this token shrank.
func (d BalanceDelta) Decrease() bool {
	return d.Post.Cmp(d.Pre) < 0
}

// Amount returns post - pre as a new big.Int.
func (d BalanceDelta) Amount() *big.Int {
	return new(big.Int).Sub(d.Post, d.Pre)
}

// WalletEvent is a chain-agnostic view of one observed transaction touching a
// watched wallet. Chain-specific decoding happens in the monitor adapters;
// everything downstream (classifier, executor) operates only on this type.
//
// TxID is the chain-native unique transaction identifier (signature on
// Solana, hash on Base) and serves as the ProcessedEventKey for dedup.
type WalletEvent struct {
	Chain  Chain
	TxID   string
	Wallet WatchedWallet

	// Deltas holds the watched wallet's per-token balance movements.
	Deltas []BalanceDelta

	// NativeChange is the wallet's native-asset balance movement (post - pre)
	// including fees. A negative value means the wallet spent native asset in
	// this transaction.
	NativeChange *big.Int
}

// SpentValue reports whether the watched wallet gave up anything in this
// event: native asset or any token balance decrease. Events where the wallet
// is only a passive recipient (airdrop/disperse pattern) return false.
func (e WalletEvent) SpentValue() bool {
	if e.NativeChange != nil && e.NativeChange.Sign() < 0 {
		return true
	}
	for _, d := range e.Deltas {
		if d.Decrease() {
			return true
		}
	}
	return false
}
