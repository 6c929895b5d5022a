// Package backfill seeds the holdings ledger from chain state so a fresh
// deployment (or one recovering from ledger loss) does not re-buy tokens
// the operator already holds. Solana positions come from the operator's
// token accounts; Base positions are reconstructed from 0x trade history.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/solana"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
)

// baseLookback bounds the 0x trade-history scan; the analytics feed keeps
// roughly a month.
const baseLookback = 30 * 24 * time.Hour

// Ledger is the holdings store plus the per-chain wipe a rebuild needs.
type Ledger interface {
	domain.HoldingsLedger
	Clear(ctx context.Context, chain domain.Chain) error
}

// Backfiller rebuilds holdings from chain state.
type Backfiller struct {
	ledger     Ledger
	skipTokens map[string]bool

	solanaRPC   *solana.Client
	solanaOwner string

	zx        *zerox.Client
	baseChain *basechain.Client
	baseOwner string

	logger *slog.Logger
}

// New creates a Backfiller. Chain collaborators may be nil for chains that
// are not enabled; their backfill is skipped.
func New(ledger Ledger, skipTokens map[string]bool, solanaRPC *solana.Client, solanaOwner string, zx *zerox.Client, baseChain *basechain.Client, baseOwner string, logger *slog.Logger) *Backfiller {
	return &Backfiller{
		ledger:      ledger,
		skipTokens:  skipTokens,
		solanaRPC:   solanaRPC,
		solanaOwner: solanaOwner,
		zx:          zx,
		baseChain:   baseChain,
		baseOwner:   baseOwner,
		logger:      logger.With(slog.String("component", "backfill")),
	}
}

// Run wipes and rebuilds the ledger for every enabled chain.
func (b *Backfiller) Run(ctx context.Context) error {
	if b.solanaRPC != nil && b.solanaOwner != "" {
		if err := b.runSolana(ctx); err != nil {
			return err
		}
	}
	if b.zx != nil && b.baseOwner != "" {
		if err := b.runBase(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runSolana records every non-empty, non-skip token account of the operator.
func (b *Backfiller) runSolana(ctx context.Context) error {
	accounts, err := b.solanaRPC.GetTokenAccountsByOwner(ctx, b.solanaOwner, "")
	if err != nil {
		return fmt.Errorf("backfill: solana token accounts: %w", err)
	}

	if err := b.ledger.Clear(ctx, domain.ChainSolana); err != nil {
		return fmt.Errorf("backfill: clear solana ledger: %w", err)
	}

	added := 0
	for _, acct := range accounts {
		if acct.Amount.Amount == "" || acct.Amount.Amount == "0" {
			continue
		}
		if b.skipTokens[acct.Mint] {
			continue
		}
		if err := b.ledger.Add(ctx, domain.ChainSolana, acct.Mint, acct.Amount.Amount); err != nil {
			return fmt.Errorf("backfill: record %s: %w", acct.Mint, err)
		}
		added++
	}
	b.logger.Info("solana backfill complete",
		slog.Int("accounts", len(accounts)),
		slog.Int("recorded", added),
	)
	return nil
}

// runBase replays the operator's recent 0x fills, keeping tokens that still
// show a live balance.
func (b *Backfiller) runBase(ctx context.Context) error {
	trades, err := b.zx.Trades(ctx, basechain.ChainID, b.baseOwner, time.Now().Add(-baseLookback))
	if err != nil {
		return fmt.Errorf("backfill: base trade history: %w", err)
	}

	if err := b.ledger.Clear(ctx, domain.ChainBase); err != nil {
		return fmt.Errorf("backfill: clear base ledger: %w", err)
	}

	added := 0
	for _, t := range trades {
		token := strings.ToLower(t.BuyToken)
		if token == basechain.NativeToken || b.skipTokens[token] {
			continue
		}

		amount := t.BuyAmount
		if b.baseChain != nil {
			// A bought-then-sold token should not block future copies.
			bal, err := b.baseChain.TokenBalance(ctx, token, b.baseOwner)
			if err != nil {
				b.logger.Warn("balance check failed, keeping position",
					slog.String("token", token),
					slog.Any("error", err),
				)
			} else if bal.Sign() == 0 {
				continue
			} else {
				amount = bal.String()
			}
		}

		if err := b.ledger.Add(ctx, domain.ChainBase, token, amount); err != nil {
			return fmt.Errorf("backfill: record %s: %w", token, err)
		}
		added++
	}
	b.logger.Info("base backfill complete",
		slog.Int("trades", len(trades)),
		slog.Int("recorded", added),
	)
	return nil
}
