package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mirrorbot/internal/backfill"
	"github.com/alanyoungcy/mirrorbot/internal/classify"
	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/executor"
	"github.com/alanyoungcy/mirrorbot/internal/holdings"
	"github.com/alanyoungcy/mirrorbot/internal/monitor"
	"github.com/alanyoungcy/mirrorbot/internal/notify"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/solana"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
)

// MonitorMode runs the live copy-trading loop: one monitor per enabled
// chain, plus the Telegram command poller when configured. It blocks until
// ctx is cancelled or a subscription fails unrecoverably.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	if deps.Solana != nil {
		m := a.buildMonitor(deps, domain.ChainSolana, deps.Solana.Source, deps.Solana.Broker, deps.Solana.Trade)
		g.Go(func() error { return m.Run(ctx) })
	}
	if deps.Base != nil {
		m := a.buildMonitor(deps, domain.ChainBase, deps.Base.Source, deps.Base.Broker, deps.Base.Trade)
		g.Go(func() error { return m.Run(ctx) })
	}

	if a.cfg.Notify.Commands {
		poller := a.buildCommandPoller(deps)
		g.Go(func() error { return poller.Run(ctx) })
	}

	a.notifyStartup(ctx, deps)

	return g.Wait()
}

// notifyStartup tells the operator which chains are being watched. Delivery
// failure never blocks monitoring.
func (a *App) notifyStartup(ctx context.Context, deps *Dependencies) {
	chains := make([]string, 0, 2)
	for _, c := range deps.Chains() {
		chains = append(chains, string(c))
	}
	msg := fmt.Sprintf("Watching chains: %s", strings.Join(chains, ", "))
	if err := deps.Notifier.Notify(ctx, "startup", "Monitor Started", msg); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed", slog.Any("error", err))
	}
}

// BackfillMode rebuilds the holdings ledger from chain state and exits.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backfill mode")
	return a.runBackfill(ctx, deps)
}

// FullMode runs a backfill first, then enters monitor mode. A failed
// backfill aborts startup rather than monitoring with a stale ledger.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	if err := a.runBackfill(ctx, deps); err != nil {
		return err
	}
	return a.MonitorMode(ctx, deps)
}

func (a *App) runBackfill(ctx context.Context, deps *Dependencies) error {
	var (
		solanaRPC   *solana.Client
		solanaOwner string
		zx          *zerox.Client
		baseChain   *basechain.Client
		baseOwner   string
	)
	if deps.Solana != nil {
		solanaRPC = deps.Solana.RPC
		solanaOwner = deps.Solana.TraderAddress
	}
	if deps.Base != nil {
		zx = deps.Base.ZeroX
		baseChain = deps.Base.Client
		baseOwner = deps.Base.TraderAddress
	}

	b := backfill.New(deps.Ledger, a.allSkipTokens(deps), solanaRPC, solanaOwner, zx, baseChain, baseOwner, a.logger)
	return b.Run(ctx)
}

// buildMonitor assembles the classify -> execute pipeline for one chain.
func (a *App) buildMonitor(deps *Dependencies, chain domain.Chain, source monitor.EventSource, b executor.TradeBroker, trade domain.TradeConfig) *monitor.Monitor {
	exec := executor.New(chain, trade, b, deps.Ledger, deps.Notifier, a.logger)
	if deps.TradeStore != nil {
		exec.SetTradeStore(deps.TradeStore)
	}
	if deps.Journal != nil {
		exec.SetJournal(deps.Journal)
	}

	classifier := classify.New(trade.SkipTokens, a.logger)
	return monitor.New(source, classifier, exec, deps.Ledger, deps.Notifier, a.logger)
}

// buildCommandPoller wires the /holdings command to the holdings reporter.
func (a *App) buildCommandPoller(deps *Dependencies) *notify.CommandPoller {
	var (
		solanaMeta holdings.SolanaMetadata
		baseMeta   holdings.BaseMetadata
		basePricer holdings.BasePricer
		baseAddr   string
	)
	if deps.Solana != nil {
		solanaMeta = deps.Solana.Jupiter
	}
	if deps.Base != nil {
		baseMeta = deps.Base.Client
		basePricer = deps.Base.ZeroX
		baseAddr = deps.Base.TraderAddress
	}
	reporter := holdings.NewReporter(deps.Ledger, deps.Chains(), solanaMeta, baseMeta, basePricer, baseAddr, a.logger)

	poller := notify.NewCommandPoller(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID, a.logger)
	poller.Handle("/holdings", reporter.Report)
	return poller
}

// allSkipTokens merges the enabled chains' skip lists; the ledger backfill
// must never record a token the classifier would never act on.
func (a *App) allSkipTokens(deps *Dependencies) map[string]bool {
	skip := make(map[string]bool)
	if deps.Solana != nil {
		for t := range deps.Solana.Trade.SkipTokens {
			skip[t] = true
		}
	}
	if deps.Base != nil {
		for t := range deps.Base.Trade.SkipTokens {
			skip[t] = true
		}
	}
	if len(skip) > 0 {
		a.logger.Debug("backfill skip set built", slog.Int("tokens", len(skip)))
	}
	return skip
}
