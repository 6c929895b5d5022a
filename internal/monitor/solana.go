package monitor

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/solana"
)

// txFetchTries bounds getTransaction retries after a log notification; a
// confirmed signature usually becomes queryable within a slot or two.
const txFetchTries = 5

// SolanaSource turns logsSubscribe notifications for the watched wallets
// into WalletEvents by fetching each transaction and diffing its pre/post
// balances.
type SolanaSource struct {
	watcher *solana.LogsWatcher
	rpc     *solana.Client
	wallets map[string]domain.WatchedWallet
	logger  *slog.Logger
}

// NewSolanaSource builds an EventSource over the given websocket watcher and
// RPC client.
func NewSolanaSource(watcher *solana.LogsWatcher, rpc *solana.Client, wallets []domain.WatchedWallet, logger *slog.Logger) *SolanaSource {
	byAddr := make(map[string]domain.WatchedWallet, len(wallets))
	for _, w := range wallets {
		byAddr[w.Address] = w
	}
	return &SolanaSource{
		watcher: watcher,
		rpc:     rpc,
		wallets: byAddr,
		logger:  logger.With(slog.String("component", "solana_source")),
	}
}

func (s *SolanaSource) Chain() domain.Chain {
	return domain.ChainSolana
}

// Run blocks on the websocket watcher until ctx is cancelled.
func (s *SolanaSource) Run(ctx context.Context, handle func(ctx context.Context, ev domain.WalletEvent)) error {
	return s.watcher.Run(ctx, func(n solana.LogsNotification) {
		if n.Err != nil {
			// Failed transactions move no balances.
			return
		}
		wallet, ok := s.wallets[n.Address]
		if !ok {
			return
		}
		ev, err := s.buildEvent(ctx, n.Signature, wallet)
		if err != nil {
			s.logger.Warn("dropping event",
				slog.String("signature", n.Signature),
				slog.Any("error", err),
			)
			return
		}
		handle(ctx, ev)
	})
}

// buildEvent fetches the confirmed transaction and extracts the watched
// wallet's balance movements. The RPC node can lag the log stream by a slot,
// so not-found responses are retried briefly.
func (s *SolanaSource) buildEvent(ctx context.Context, signature string, wallet domain.WatchedWallet) (domain.WalletEvent, error) {
	var tx *solana.Transaction
	var err error
	for i := 0; i < txFetchTries; i++ {
		tx, err = s.rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			break
		}
		select {
		case <-ctx.Done():
			return domain.WalletEvent{}, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	if err != nil {
		return domain.WalletEvent{}, err
	}
	if tx == nil || tx.Meta == nil {
		return domain.WalletEvent{}, domain.ErrNotFound
	}

	ev := domain.WalletEvent{
		Chain:  domain.ChainSolana,
		TxID:   signature,
		Wallet: wallet,
	}

	// Token movements: diff the wallet-owned pre/post token balance entries,
	// keyed by mint. An entry present only post-side is a fresh account with
	// zero prior balance.
	pre := make(map[string]*big.Int)
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == wallet.Address {
			pre[b.Mint] = parseAmount(b.UITokenAmt.Amount)
		}
	}
	seen := make(map[string]bool)
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner != wallet.Address {
			continue
		}
		p, ok := pre[b.Mint]
		if !ok {
			p = new(big.Int)
		}
		seen[b.Mint] = true
		ev.Deltas = append(ev.Deltas, domain.BalanceDelta{
			Token: b.Mint,
			Pre:   p,
			Post:  parseAmount(b.UITokenAmt.Amount),
		})
	}
	// Accounts that were closed leave no post entry; the balance went to zero.
	for mint, p := range pre {
		if !seen[mint] {
			ev.Deltas = append(ev.Deltas, domain.BalanceDelta{
				Token: mint,
				Pre:   p,
				Post:  new(big.Int),
			})
		}
	}

	// Native SOL movement: locate the wallet among the account keys and diff
	// its lamport balance.
	for i, key := range tx.Transaction.Message.AccountKeys {
		if key != wallet.Address {
			continue
		}
		if i < len(tx.Meta.PreBalances) && i < len(tx.Meta.PostBalances) {
			preBal := new(big.Int).SetUint64(tx.Meta.PreBalances[i])
			postBal := new(big.Int).SetUint64(tx.Meta.PostBalances[i])
			ev.NativeChange = new(big.Int).Sub(postBal, preBal)
		}
		break
	}

	return ev, nil
}

func parseAmount(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
