// Package executor converts classified purchase decisions into actual swaps.
// It runs the precondition checks, drives the bounded-retry execution state
// machine against a chain's TradeBroker, and guarantees the holdings ledger
// reflects a successful trade before the operator hears about it.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// Notifier delivers operator-facing status messages. Implemented by
// notify.Notifier. Delivery failures are logged by the implementation and
// never escalate into the execution path.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Journal records terminal trade outcomes to an external sink (S3). Optional.
type Journal interface {
	Record(ctx context.Context, trade domain.CopyTrade) error
}

// Notification event types emitted by the executor.
const (
	EventTradeSuccess = "trade_success"
	EventTradeSkip    = "trade_skip"
	EventTradeFailure = "trade_failure"
)

// Executor executes copy trades for one chain. The retry loop for a single
// trade is sequential and blocking from that trade's perspective but never
// blocks other wallets' event processing; the monitor runs each execution in
// its own goroutine.
type Executor struct {
	chain    domain.Chain
	cfg      domain.TradeConfig
	broker   TradeBroker
	ledger   domain.HoldingsLedger
	notifier Notifier
	logger   *slog.Logger

	trades  domain.TradeStore // optional
	journal Journal           // optional

	// sleep and now are injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an Executor for the given chain.
func New(
	chain domain.Chain,
	cfg domain.TradeConfig,
	broker TradeBroker,
	ledger domain.HoldingsLedger,
	notifier Notifier,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		chain:    chain,
		cfg:      cfg,
		broker:   broker,
		ledger:   ledger,
		notifier: notifier,
		logger: logger.With(
			slog.String("component", "executor"),
			slog.String("chain", string(chain)),
		),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// SetTradeStore enables best-effort trade history persistence.
func (e *Executor) SetTradeStore(s domain.TradeStore) { e.trades = s }

// SetJournal enables best-effort trade journaling to blob storage.
func (e *Executor) SetJournal(j Journal) { e.journal = j }

// Execute runs one classified purchase through preconditions and the swap
// state machine. Every terminal outcome (success, skip, failure) produces
// exactly one operator notification; intermediate retries are not notified.
// Errors never propagate: the returned result is the whole story.
func (e *Executor) Execute(ctx context.Context, dec domain.Decision) domain.ExecutionResult {
	if dec.Kind != domain.DecisionPurchase {
		e.logger.Warn("executor invoked with non-purchase decision",
			slog.String("kind", string(dec.Kind)))
		return domain.ExecutionResult{Status: domain.TradeSkipped}
	}

	start := e.now()
	symbol := shortToken(dec.Token)
	title := fmt.Sprintf("%s Trade Alert", strings.ToUpper(string(e.chain)))

	e.logger.Info("starting copy trade",
		slog.String("token", dec.Token),
		slog.String("source", dec.Wallet.Label),
	)

	// Precondition a: operator already holds the token. A ledger read failure
	// is logged and treated as not-held; blocking all trading on a ledger
	// outage is worse than the duplicate-purchase risk it creates.
	held, err := e.ledger.Has(ctx, e.chain, dec.Token)
	if err != nil {
		e.logger.Error("holdings check failed",
			slog.String("token", dec.Token),
			slog.String("error", err.Error()),
		)
	}
	if held {
		msg := fmt.Sprintf("*%s* bought *%s*\nTrade skipped - Already holding this token",
			dec.Wallet.Label, symbol)
		e.notify(ctx, EventTradeSkip, title, msg)
		return e.finish(ctx, dec, start, domain.ExecutionResult{
			Status:     domain.TradeSkipped,
			SkipReason: domain.SkipAlreadyHeld,
		})
	}

	// Precondition b: the source wallet held the token before this event.
	// Accumulation is not copied; only initial entries are.
	if dec.Prior != nil && dec.Prior.Sign() > 0 {
		msg := fmt.Sprintf("*%s* is accumulating *%s*\nTrade skipped - Only copying initial entries",
			dec.Wallet.Label, symbol)
		e.notify(ctx, EventTradeSkip, title, msg)
		return e.finish(ctx, dec, start, domain.ExecutionResult{
			Status:     domain.TradeSkipped,
			SkipReason: domain.SkipAccumulation,
		})
	}

	// Precondition c: spendable balance covers the trade plus the fee buffer.
	required := e.cfg.Required()
	balance, err := e.broker.SpendableBalance(ctx)
	if err != nil {
		msg := fmt.Sprintf("*Token:* %s\n*Error:* balance check failed: %s", symbol, truncate(err.Error()))
		e.notify(ctx, EventTradeFailure, failTitle(e.chain), msg)
		return e.finish(ctx, dec, start, domain.ExecutionResult{
			Status: domain.TradeFailed,
			Err:    err,
		})
	}
	if balance.Cmp(required) < 0 {
		msg := fmt.Sprintf("*%s* bought *%s*\n\nTrade Skipped - Insufficient %s balance. Required: %s, Available: %s",
			dec.Wallet.Label, symbol, e.chain.NativeSymbol(),
			formatNative(e.chain, required), formatNative(e.chain, balance))
		e.notify(ctx, EventTradeSkip, title, msg)
		return e.finish(ctx, dec, start, domain.ExecutionResult{
			Status:     domain.TradeSkipped,
			SkipReason: domain.SkipInsufficientFunds,
			Err:        domain.ErrInsufficientFunds,
		})
	}

	res := e.runMachine(ctx, dec)
	res.Duration = e.now().Sub(start)

	switch {
	case res.Status == domain.TradeFailed && ctx.Err() != nil:
		// Shutdown mid-trade: abandoned, not failed. No operator alert.

	case res.Status == domain.TradeSucceeded:
		msg := fmt.Sprintf("*Token:* %s\n*Following:* %s\n*Amount:* %s\n*Transaction:* [View](%s)\n*Execution Time:* %.2fs",
			symbol, dec.Wallet.Label, formatNative(e.chain, e.cfg.AmountIn),
			e.chain.ExplorerTxURL(res.TxID), res.Duration.Seconds())
		e.notify(ctx, EventTradeSuccess,
			fmt.Sprintf("%s Copy Trade Executed!", strings.ToUpper(string(e.chain))), msg)

	case res.SkipReason == domain.SkipNoRoute:
		msg := fmt.Sprintf("Trade Skipped - No route found: %s", symbol)
		e.notify(ctx, EventTradeSkip, title, msg)

	default:
		errText := "unknown error"
		if res.Err != nil {
			errText = truncate(res.Err.Error())
		}
		msg := fmt.Sprintf("*Token:* %s\n*Error:* %s", symbol, errText)
		e.notify(ctx, EventTradeFailure, failTitle(e.chain), msg)
	}

	return e.finish(ctx, dec, start, res)
}

// runMachine drives the execution state machine to a terminal state. On
// success the resulting token balance is read back from the chain and written
// to the ledger BEFORE returning, so a trade is never reported successful
// while the ledger still says not-held.
func (e *Executor) runMachine(ctx context.Context, dec domain.Decision) domain.ExecutionResult {
	var (
		state    = StateQuoting
		tries    int
		attempts int
		lastErr  error

		quote  Quote
		prep   PreparedSwap
		signed SignedSwap
		txID   string
	)

	for !state.Terminal() {
		if ctx.Err() != nil {
			// Process shutdown: the in-flight trade is abandoned without
			// rollback or notification.
			e.logger.Warn("copy trade abandoned", slog.String("state", state.String()))
			return domain.ExecutionResult{Status: domain.TradeFailed, Err: ctx.Err(), Attempts: attempts}
		}

		var stepErr error
		switch state {
		case StateQuoting:
			attempts++
			quote, stepErr = e.broker.Quote(ctx, dec.Token)
		case StateBuilding:
			prep, stepErr = e.broker.Build(ctx, quote)
		case StateSigning:
			signed, stepErr = e.broker.Sign(ctx, prep)
		case StateSubmitting:
			txID, stepErr = e.broker.Submit(ctx, signed)
		case StateConfirming:
			stepErr = e.broker.Confirm(ctx, txID)
		}

		if stepErr == nil {
			state = Next(state, nil, tries)
			continue
		}

		lastErr = stepErr
		if !domain.IsTerminal(stepErr) {
			tries++
		}
		next := Next(state, stepErr, tries)
		if next == StateQuoting {
			delay := Backoff(tries)
			e.logger.Warn("attempt failed, retrying",
				slog.Int("try", tries),
				slog.String("state", state.String()),
				slog.Duration("backoff", delay),
				slog.String("error", stepErr.Error()),
			)
			if err := e.sleep(ctx, delay); err != nil {
				return domain.ExecutionResult{Status: domain.TradeFailed, Err: err, Attempts: attempts}
			}
		}
		state = next
	}

	if state == StateFailed {
		res := domain.ExecutionResult{Status: domain.TradeFailed, Err: lastErr, Attempts: attempts}
		if errors.Is(lastErr, domain.ErrNoRoute) {
			res.Status = domain.TradeSkipped
			res.SkipReason = domain.SkipNoRoute
		}
		return res
	}

	// Read the actual resulting balance rather than trusting the quoted
	// estimate, to tolerate slippage. Fall back to the estimate if the read
	// fails.
	amountOut, err := e.broker.TokenBalance(ctx, dec.Token)
	if err != nil {
		e.logger.Warn("post-trade balance read failed, using quote estimate",
			slog.String("token", dec.Token),
			slog.String("error", err.Error()),
		)
		amountOut = quote.EstimatedOut
	}

	if err := e.ledger.Add(ctx, e.chain, dec.Token, amountOut); err != nil {
		// The trade happened; success is still reported, but a missing ledger
		// entry risks a duplicate purchase next time this token moves.
		e.logger.Error("ledger add failed after successful trade",
			slog.String("token", dec.Token),
			slog.String("tx", txID),
			slog.String("error", fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err).Error()),
		)
	}

	return domain.ExecutionResult{
		Status:    domain.TradeSucceeded,
		TxID:      txID,
		Attempts:  attempts,
		AmountOut: amountOut,
	}
}

// finish records the terminal outcome in the optional trade store and journal
// and returns the result. Recording failures are logged only.
func (e *Executor) finish(ctx context.Context, dec domain.Decision, start time.Time, res domain.ExecutionResult) domain.ExecutionResult {
	if res.Duration == 0 {
		res.Duration = e.now().Sub(start)
	}

	trade := domain.CopyTrade{
		ID:           uuid.New().String(),
		Chain:        e.chain,
		Token:        dec.Token,
		SourceWallet: dec.Wallet.Label,
		SourceTxID:   dec.SourceTx,
		Status:       res.Status,
		SkipReason:   res.SkipReason,
		TxID:         res.TxID,
		AmountIn:     e.cfg.AmountIn.String(),
		AmountOut:    res.AmountOut,
		Attempts:     res.Attempts,
		StartedAt:    start.UTC(),
		CompletedAt:  e.now().UTC(),
	}
	if res.Err != nil {
		trade.Error = res.Err.Error()
	}

	if e.trades != nil {
		if err := e.trades.Insert(ctx, trade); err != nil {
			e.logger.Warn("trade history insert failed", slog.String("error", err.Error()))
		}
	}
	if e.journal != nil {
		if err := e.journal.Record(ctx, trade); err != nil {
			e.logger.Warn("trade journal write failed", slog.String("error", err.Error()))
		}
	}

	return res
}

// notify sends one operator message; failures are swallowed after logging.
func (e *Executor) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Error("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func failTitle(chain domain.Chain) string {
	return fmt.Sprintf("%s Copy Trade Failed!", strings.ToUpper(string(chain)))
}

// shortToken renders a token address as "abcd...wxyz" for messages.
func shortToken(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// formatNative renders a base-unit amount in whole native units, e.g.
// "0.1000 SOL".
func formatNative(chain domain.Chain, amount *big.Int) string {
	scale := new(big.Float).SetInt(new(big.Int).Exp(
		big.NewInt(10), big.NewInt(int64(chain.NativeDecimals())), nil))
	v := new(big.Float).Quo(new(big.Float).SetInt(amount), scale)
	return fmt.Sprintf("%s %s", v.Text('f', 4), chain.NativeSymbol())
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:197] + "..."
	}
	return s
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
