// Package classify turns raw wallet events into trade decisions. The
// classifier is pure: given the same event and the same ledger snapshot it
// always produces the same decision, so idempotence across duplicate
// deliveries is enforced upstream by the monitor's processed-key set.
package classify

import (
	"log/slog"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// Classifier applies the purchase/sell/ignore rules for one chain. Skip
// tokens (native asset, wrapped native, major stables) are fixed at
// construction.
type Classifier struct {
	skip   map[string]bool
	logger *slog.Logger
}

// New creates a Classifier with the given skip-token set. Token addresses in
// skipTokens must already be normalized the way the chain's adapter
// normalizes them (lowercase hex on Base, canonical base58 on Solana).
func New(skipTokens map[string]bool, logger *slog.Logger) *Classifier {
	if skipTokens == nil {
		skipTokens = map[string]bool{}
	}
	return &Classifier{
		skip:   skipTokens,
		logger: logger.With(slog.String("component", "classifier")),
	}
}

// Classify decides what one wallet event represents. held is a snapshot of
// the operator's current holdings on the event's chain (token -> held).
//
// Rules, in order:
//   - events without a transaction ID or watched wallet are ignored
//   - skip-listed tokens are never purchases or sells
//   - a balance increase on a non-skip token is a Purchase, but only when the
//     wallet gave up value in the same transaction (native asset or another
//     token); passive receipts (airdrops, dispersals) are ignored
//   - at most one Purchase per event: the first qualifying token wins, so a
//     multi-hop swap never fires several simultaneous copy-trades
//   - a balance decrease on a non-skip token the operator currently holds is
//     a Sell; a Purchase in the same event takes precedence
func (c *Classifier) Classify(e domain.WalletEvent, held map[string]bool) domain.Decision {
	if e.TxID == "" || e.Wallet.Address == "" {
		return domain.Ignore
	}

	spent := e.SpentValue()

	if spent {
		for _, d := range e.Deltas {
			if c.skip[d.Token] {
				continue
			}
			if d.Increase() {
				c.logger.Debug("purchase detected",
					slog.String("tx", e.TxID),
					slog.String("wallet", e.Wallet.Label),
					slog.String("token", d.Token),
				)
				return domain.Decision{
					Kind:     domain.DecisionPurchase,
					Token:    d.Token,
					Wallet:   e.Wallet,
					SourceTx: e.TxID,
					Amount:   d.Amount(),
					Prior:    d.Pre,
				}
			}
		}
	}

	for _, d := range e.Deltas {
		if c.skip[d.Token] {
			continue
		}
		if d.Decrease() && held[d.Token] {
			c.logger.Debug("sell of held token detected",
				slog.String("tx", e.TxID),
				slog.String("wallet", e.Wallet.Label),
				slog.String("token", d.Token),
			)
			return domain.Decision{
				Kind:     domain.DecisionSell,
				Token:    d.Token,
				Wallet:   e.Wallet,
				SourceTx: e.TxID,
				Amount:   d.Amount(),
				Prior:    d.Pre,
			}
		}
	}

	return domain.Ignore
}
