// Package broker provides the per-chain trade execution collaborators
// behind the executor's state machine: Jupiter-settled swaps on Solana and
// 0x permit2-settled swaps on Base.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/executor"
	"github.com/alanyoungcy/mirrorbot/internal/platform/jupiter"
	"github.com/alanyoungcy/mirrorbot/internal/platform/solana"
)

// confirmInterval paces signature-status polling while a transaction lands.
const confirmInterval = 2 * time.Second

// confirmTimeout bounds how long a submitted Solana transaction is polled
// before the attempt is declared failed. Blockhash expiry makes anything
// beyond this unlandable anyway.
const confirmTimeout = 90 * time.Second

// SolanaBroker executes SOL-to-token swaps through Jupiter.
type SolanaBroker struct {
	rpc    *solana.Client
	jup    *jupiter.Client
	kp     *solana.Keypair
	cfg    domain.TradeConfig
	logger *slog.Logger
}

// NewSolanaBroker wires the Solana RPC client, the Jupiter aggregator and
// the operator keypair into one TradeBroker.
func NewSolanaBroker(rpc *solana.Client, jup *jupiter.Client, kp *solana.Keypair, cfg domain.TradeConfig, logger *slog.Logger) *SolanaBroker {
	return &SolanaBroker{
		rpc:    rpc,
		jup:    jup,
		kp:     kp,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "solana_broker")),
	}
}

func (b *SolanaBroker) Quote(ctx context.Context, token string) (executor.Quote, error) {
	q, err := b.jup.Quote(ctx, solana.WSOLMint, token, b.cfg.AmountIn.Uint64(), b.cfg.SlippageBps)
	if err != nil {
		return executor.Quote{}, err
	}
	return executor.Quote{EstimatedOut: q.OutAmount, Payload: q}, nil
}

func (b *SolanaBroker) Build(ctx context.Context, q executor.Quote) (executor.PreparedSwap, error) {
	quote, ok := q.Payload.(jupiter.QuoteResponse)
	if !ok {
		return executor.PreparedSwap{}, fmt.Errorf("broker: unexpected quote payload %T", q.Payload)
	}
	tx, err := b.jup.Swap(ctx, quote, b.kp.PublicKey())
	if err != nil {
		return executor.PreparedSwap{}, err
	}
	return executor.PreparedSwap{Payload: tx}, nil
}

func (b *SolanaBroker) Sign(_ context.Context, p executor.PreparedSwap) (executor.SignedSwap, error) {
	tx, ok := p.Payload.(string)
	if !ok {
		return executor.SignedSwap{}, fmt.Errorf("broker: unexpected swap payload %T", p.Payload)
	}
	signed, err := b.kp.SignTransactionBase64(tx)
	if err != nil {
		return executor.SignedSwap{}, err
	}
	return executor.SignedSwap{Payload: signed}, nil
}

func (b *SolanaBroker) Submit(ctx context.Context, s executor.SignedSwap) (string, error) {
	signed, ok := s.Payload.(string)
	if !ok {
		return "", fmt.Errorf("broker: unexpected signed payload %T", s.Payload)
	}
	return b.rpc.SendTransaction(ctx, signed)
}

func (b *SolanaBroker) Confirm(ctx context.Context, txID string) error {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmInterval)
	defer ticker.Stop()

	for {
		status, err := b.rpc.GetSignatureStatus(ctx, txID)
		if err != nil {
			b.logger.Warn("signature status lookup failed", slog.String("signature", txID), slog.Any("error", err))
		} else if status != nil {
			if status.Err != nil {
				return fmt.Errorf("broker: transaction %s failed on chain: %w", txID, domain.ErrReverted)
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker: confirm %s: %w", txID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *SolanaBroker) SpendableBalance(ctx context.Context) (*big.Int, error) {
	lamports, err := b.rpc.GetBalance(ctx, b.kp.PublicKey())
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(lamports), nil
}

func (b *SolanaBroker) TokenBalance(ctx context.Context, token string) (string, error) {
	accounts, err := b.rpc.GetTokenAccountsByOwner(ctx, b.kp.PublicKey(), token)
	if err != nil {
		return "", err
	}
	total := new(big.Int)
	for _, acct := range accounts {
		amt, ok := new(big.Int).SetString(acct.Amount.Amount, 10)
		if !ok {
			continue
		}
		total.Add(total, amt)
	}
	return total.String(), nil
}
