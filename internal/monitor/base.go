package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
)

// baseLogBuffer sizes the subscription channel; bursts beyond this apply
// backpressure to the node rather than dropping logs.
const baseLogBuffer = 256

const (
	baseReconnectMin = 1 * time.Second
	baseReconnectMax = 30 * time.Second
)

// baseChain is the subset of basechain.Client the source relies on.
type baseChain interface {
	SubscribeTransfers(ctx context.Context, wallets []string, logs chan<- types.Log) ([]ethereum.Subscription, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionOrigin(ctx context.Context, hash common.Hash) (common.Address, *big.Int, error)
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
}

// BaseSource turns ERC-20 Transfer subscriptions on Base into WalletEvents.
// Addresses are normalized to lowercase throughout so ledger keys and skip
// lists compare reliably.
type BaseSource struct {
	client  baseChain
	wallets map[string]domain.WatchedWallet
	logger  *slog.Logger

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBaseSource builds an EventSource over the given Base client.
func NewBaseSource(client *basechain.Client, wallets []domain.WatchedWallet, logger *slog.Logger) *BaseSource {
	byAddr := make(map[string]domain.WatchedWallet, len(wallets))
	for _, w := range wallets {
		byAddr[strings.ToLower(w.Address)] = w
	}
	return &BaseSource{
		client:  client,
		wallets: byAddr,
		logger:  logger.With(slog.String("component", "base_source")),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *BaseSource) Chain() domain.Chain {
	return domain.ChainBase
}

// Run subscribes to Transfer logs touching the watched wallets and blocks
// until ctx is cancelled. Subscription errors tear down and re-establish
// both filters; go-ethereum does not resubscribe on its own. Reconnects use
// doubling backoff capped at 30s, reset after a healthy connection.
func (s *BaseSource) Run(ctx context.Context, handle func(ctx context.Context, ev domain.WalletEvent)) error {
	addrs := make([]string, 0, len(s.wallets))
	for a := range s.wallets {
		addrs = append(addrs, a)
	}

	delay := baseReconnectMin
	for {
		start := time.Now()
		err := s.runSubscriptions(ctx, addrs, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(start) > time.Minute {
			delay = baseReconnectMin
		}
		s.logger.Error("subscription lost, reconnecting",
			slog.Any("error", err),
			slog.Duration("backoff", delay),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
		if delay *= 2; delay > baseReconnectMax {
			delay = baseReconnectMax
		}
	}
}

func (s *BaseSource) runSubscriptions(ctx context.Context, addrs []string, handle func(ctx context.Context, ev domain.WalletEvent)) error {
	logs := make(chan types.Log, baseLogBuffer)
	subs, err := s.client.SubscribeTransfers(ctx, addrs, logs)
	if err != nil {
		return err
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()
	s.logger.Info("transfer subscriptions established", slog.Int("wallets", len(addrs)))

	errs := make(chan error, len(subs))
	for _, sub := range subs {
		sub := sub
		go func() {
			if err, ok := <-sub.Err(); ok && err != nil {
				errs <- err
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("monitor: base subscription: %w", err)
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			s.handleLog(ctx, lg, handle)
		}
	}
}

// handleLog resolves the full transaction behind one Transfer log. The
// Monitor's dedup set keys on transaction hash, so a swap emitting several
// transfers is still processed once: whichever log arrives first wins, and
// the event is built from the complete receipt either way.
func (s *BaseSource) handleLog(ctx context.Context, lg types.Log, handle func(ctx context.Context, ev domain.WalletEvent)) {
	wallet, ok := s.walletFor(lg)
	if !ok {
		return
	}
	ev, err := s.buildEvent(ctx, lg.TxHash, wallet)
	if err != nil {
		s.logger.Warn("dropping event",
			slog.String("tx", lg.TxHash.Hex()),
			slog.Any("error", err),
		)
		return
	}
	handle(ctx, ev)
}

func (s *BaseSource) walletFor(lg types.Log) (domain.WatchedWallet, bool) {
	if len(lg.Topics) < 3 {
		return domain.WatchedWallet{}, false
	}
	from := strings.ToLower(common.BytesToAddress(lg.Topics[1].Bytes()).Hex())
	to := strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
	if w, ok := s.wallets[from]; ok {
		return w, true
	}
	if w, ok := s.wallets[to]; ok {
		return w, true
	}
	return domain.WatchedWallet{}, false
}

// buildEvent reconstructs the wallet's balance movements from the receipt.
// Transfer logs carry amounts rather than balances, so prior balances are
// derived from the current on-chain balance minus the observed net change.
func (s *BaseSource) buildEvent(ctx context.Context, txHash common.Hash, wallet domain.WatchedWallet) (domain.WalletEvent, error) {
	receipt, err := s.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return domain.WalletEvent{}, err
	}
	if receipt.Status == 0 {
		return domain.WalletEvent{}, fmt.Errorf("monitor: transaction reverted")
	}

	walletAddr := strings.ToLower(wallet.Address)

	// Net movement per token across all Transfer logs in the transaction.
	net := make(map[string]*big.Int)
	order := make([]string, 0, 4)
	for _, lg := range receipt.Logs {
		if len(lg.Topics) != 3 || lg.Topics[0] != basechain.TransferTopic || len(lg.Data) < 32 {
			continue
		}
		from := strings.ToLower(common.BytesToAddress(lg.Topics[1].Bytes()).Hex())
		to := strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
		amount := new(big.Int).SetBytes(lg.Data[:32])
		token := strings.ToLower(lg.Address.Hex())

		var signed *big.Int
		switch walletAddr {
		case from:
			signed = new(big.Int).Neg(amount)
		case to:
			signed = amount
		default:
			continue
		}
		if _, ok := net[token]; !ok {
			net[token] = new(big.Int)
			order = append(order, token)
		}
		net[token].Add(net[token], signed)
	}

	ev := domain.WalletEvent{
		Chain:  domain.ChainBase,
		TxID:   strings.ToLower(txHash.Hex()),
		Wallet: wallet,
	}

	for _, token := range order {
		change := net[token]
		if change.Sign() == 0 {
			continue
		}
		post, err := s.client.TokenBalance(ctx, token, wallet.Address)
		if err != nil {
			// Balance lookup is only needed for the prior-holding check;
			// assume the change itself is the whole position.
			s.logger.Warn("token balance lookup failed",
				slog.String("token", token),
				slog.Any("error", err),
			)
			post = new(big.Int).Set(change)
			if post.Sign() < 0 {
				post = new(big.Int)
			}
		}
		pre := new(big.Int).Sub(post, change)
		if pre.Sign() < 0 {
			pre = new(big.Int)
		}
		ev.Deltas = append(ev.Deltas, domain.BalanceDelta{Token: token, Pre: pre, Post: post})
	}

	// Raw-ETH spends do not emit Transfer logs; read the transaction value.
	from, value, err := s.client.TransactionOrigin(ctx, txHash)
	if err != nil {
		s.logger.Warn("transaction origin lookup failed",
			slog.String("tx", txHash.Hex()),
			slog.Any("error", err),
		)
	} else if strings.EqualFold(from.Hex(), wallet.Address) && value.Sign() > 0 {
		ev.NativeChange = new(big.Int).Neg(value)
	}

	return ev, nil
}
