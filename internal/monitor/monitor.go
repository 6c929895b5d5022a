// Package monitor maintains live subscriptions to watched-wallet activity and
// feeds each distinct transaction exactly once into the classification and
// execution pipeline. One Monitor instance runs per chain; chain-specific
// subscription and event decoding live behind the EventSource interface.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/mirrorbot/internal/classify"
	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/executor"
)

// processedCapacity bounds the per-monitor recency set; beyond this the
// oldest transaction IDs are dropped first.
const processedCapacity = 1000

// EventSource is a chain-specific adapter that subscribes to activity for
// every watched wallet on one chain and invokes handle for each observed
// transaction. Run blocks until ctx is cancelled; transport-level
// disconnections are re-established internally and events missed during the
// outage are simply not seen. Duplicate and out-of-order delivery is
// expected; the Monitor dedupes.
type EventSource interface {
	Chain() domain.Chain
	Run(ctx context.Context, handle func(ctx context.Context, ev domain.WalletEvent)) error
}

// Executor executes a purchase decision. Implemented by executor.Executor.
type Executor interface {
	Execute(ctx context.Context, dec domain.Decision) domain.ExecutionResult
}

// Monitor wires one chain's event source to the classifier and executor.
type Monitor struct {
	source     EventSource
	classifier *classify.Classifier
	exec       Executor
	ledger     domain.HoldingsLedger
	notifier   executor.Notifier
	recent     *RecentSet
	logger     *slog.Logger
}

// New creates a Monitor for the given source's chain.
func New(
	source EventSource,
	classifier *classify.Classifier,
	exec Executor,
	ledger domain.HoldingsLedger,
	notifier executor.Notifier,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		source:     source,
		classifier: classifier,
		exec:       exec,
		ledger:     ledger,
		notifier:   notifier,
		recent:     NewRecentSet(processedCapacity),
		logger: logger.With(
			slog.String("component", "monitor"),
			slog.String("chain", string(source.Chain())),
		),
	}
}

// Run starts the subscription and blocks until ctx is cancelled or the source
// fails unrecoverably.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor starting")
	defer m.logger.Info("monitor stopped")
	return m.source.Run(ctx, m.handleEvent)
}

// handleEvent processes one observed transaction. It never lets a panic or
// error escape: one bad event must not take down monitoring for the
// remaining wallets.
func (m *Monitor) handleEvent(ctx context.Context, ev domain.WalletEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panic",
				slog.String("tx", ev.TxID),
				slog.Any("panic", r),
			)
		}
	}()

	if ev.TxID == "" {
		return
	}

	// The same transaction can arrive through separate listener
	// registrations (e.g. outgoing and incoming transfer filters). The first
	// arrival claims the key; later arrivals are no-ops.
	if !m.recent.MarkProcessed(ev.TxID) {
		m.logger.Debug("duplicate event", slog.String("tx", ev.TxID))
		return
	}

	held := m.heldSnapshot(ctx, ev.Chain)
	dec := m.classifier.Classify(ev, held)

	switch dec.Kind {
	case domain.DecisionPurchase:
		// The executor's retry loop is sequential for this one trade; running
		// it here would stall the subscription for other wallets.
		go func() {
			res := m.exec.Execute(ctx, dec)
			m.logger.Info("copy trade finished",
				slog.String("tx", ev.TxID),
				slog.String("token", dec.Token),
				slog.String("status", string(res.Status)),
				slog.Int("attempts", res.Attempts),
			)
		}()

	case domain.DecisionSell:
		m.notifySell(ctx, dec, ev)
	}
}

// heldSnapshot reads the operator's current holdings for classification. On
// ledger failure it returns an empty snapshot; sells of held tokens may then
// go unnoticed for this event, which is preferable to dropping it entirely.
func (m *Monitor) heldSnapshot(ctx context.Context, chain domain.Chain) map[string]bool {
	all, err := m.ledger.All(ctx, chain)
	if err != nil {
		m.logger.Error("holdings snapshot failed", slog.String("error", err.Error()))
		return map[string]bool{}
	}
	held := make(map[string]bool, len(all))
	for token := range all {
		held[token] = true
	}
	return held
}

// notifySell alerts the operator that a watched wallet is reducing a position
// the operator currently holds. Sells never trigger an execution.
func (m *Monitor) notifySell(ctx context.Context, dec domain.Decision, ev domain.WalletEvent) {
	title := fmt.Sprintf("%s Sell Alert!", strings.ToUpper(string(ev.Chain)))
	msg := fmt.Sprintf("*%s* is selling *%s*\nYou currently hold this token\n[View Transaction](%s)",
		dec.Wallet.Label, shortAddr(dec.Token), ev.Chain.ExplorerTxURL(ev.TxID))
	if err := m.notifier.Notify(ctx, "sell_alert", title, msg); err != nil {
		m.logger.Error("sell notification failed",
			slog.String("tx", ev.TxID),
			slog.String("error", err.Error()),
		)
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
