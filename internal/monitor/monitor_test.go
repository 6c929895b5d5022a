package monitor

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mirrorbot/internal/classify"
	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

type fakeSource struct {
	chain  domain.Chain
	events []domain.WalletEvent
}

func (s *fakeSource) Chain() domain.Chain { return s.chain }

func (s *fakeSource) Run(ctx context.Context, handle func(ctx context.Context, ev domain.WalletEvent)) error {
	for _, ev := range s.events {
		handle(ctx, ev)
	}
	return nil
}

type fakeExec struct {
	executed chan domain.Decision
}

func (e *fakeExec) Execute(ctx context.Context, dec domain.Decision) domain.ExecutionResult {
	e.executed <- dec
	return domain.ExecutionResult{Status: domain.TradeSucceeded}
}

type staticLedger struct {
	held map[string]string
	err  error
}

func (l *staticLedger) Add(ctx context.Context, chain domain.Chain, token, amount string) error {
	return nil
}
func (l *staticLedger) Remove(ctx context.Context, chain domain.Chain, token string) error {
	return nil
}
func (l *staticLedger) Has(ctx context.Context, chain domain.Chain, token string) (bool, error) {
	_, ok := l.held[token]
	return ok, l.err
}
func (l *staticLedger) All(ctx context.Context, chain domain.Chain) (map[string]string, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.held, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func purchaseEvent(txID, token string) domain.WalletEvent {
	return domain.WalletEvent{
		Chain:  domain.ChainSolana,
		TxID:   txID,
		Wallet: domain.WatchedWallet{Label: "whale", Address: "addr"},
		Deltas: []domain.BalanceDelta{
			{Token: token, Pre: big.NewInt(0), Post: big.NewInt(100)},
		},
		NativeChange: big.NewInt(-1_000_000),
	}
}

func sellEvent(txID, token string) domain.WalletEvent {
	return domain.WalletEvent{
		Chain:  domain.ChainSolana,
		TxID:   txID,
		Wallet: domain.WatchedWallet{Label: "whale", Address: "addr"},
		Deltas: []domain.BalanceDelta{
			{Token: token, Pre: big.NewInt(100), Post: big.NewInt(0)},
		},
		NativeChange: big.NewInt(-5000),
	}
}

func runMonitor(t *testing.T, source *fakeSource, ledger domain.HoldingsLedger) (*fakeExec, *recordingNotifier) {
	t.Helper()

	exec := &fakeExec{executed: make(chan domain.Decision, 16)}
	notifier := &recordingNotifier{}
	m := New(source, classify.New(nil, slog.Default()), exec, ledger, notifier, slog.Default())

	require.NoError(t, m.Run(context.Background()))
	return exec, notifier
}

func drainExecuted(exec *fakeExec, wait time.Duration) []domain.Decision {
	var out []domain.Decision
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case dec := <-exec.executed:
			out = append(out, dec)
		case <-timer.C:
			return out
		}
	}
}

func TestMonitor_PurchaseReachesExecutor(t *testing.T) {
	source := &fakeSource{
		chain:  domain.ChainSolana,
		events: []domain.WalletEvent{purchaseEvent("tx-1", "MintA")},
	}

	exec, _ := runMonitor(t, source, &staticLedger{held: map[string]string{}})

	decs := drainExecuted(exec, 500*time.Millisecond)
	require.Len(t, decs, 1)
	assert.Equal(t, domain.DecisionPurchase, decs[0].Kind)
	assert.Equal(t, "MintA", decs[0].Token)
	assert.Equal(t, "tx-1", decs[0].SourceTx)
}

func TestMonitor_DuplicateDeliveryExecutesOnce(t *testing.T) {
	// The same transaction arrives three times, as happens when separate
	// transfer filters each match it.
	ev := purchaseEvent("tx-dup", "MintA")
	source := &fakeSource{
		chain:  domain.ChainSolana,
		events: []domain.WalletEvent{ev, ev, ev},
	}

	exec, _ := runMonitor(t, source, &staticLedger{held: map[string]string{}})

	decs := drainExecuted(exec, 500*time.Millisecond)
	assert.Len(t, decs, 1)
}

func TestMonitor_SellAlertsWithoutExecution(t *testing.T) {
	source := &fakeSource{
		chain:  domain.ChainSolana,
		events: []domain.WalletEvent{sellEvent("tx-2", "MintB")},
	}

	exec, notifier := runMonitor(t, source, &staticLedger{held: map[string]string{"MintB": "100"}})

	assert.Empty(t, drainExecuted(exec, 200*time.Millisecond))
	assert.Equal(t, []string{"sell_alert"}, notifier.all())
}

func TestMonitor_SellOfUnheldTokenSilent(t *testing.T) {
	source := &fakeSource{
		chain:  domain.ChainSolana,
		events: []domain.WalletEvent{sellEvent("tx-3", "MintC")},
	}

	exec, notifier := runMonitor(t, source, &staticLedger{held: map[string]string{}})

	assert.Empty(t, drainExecuted(exec, 200*time.Millisecond))
	assert.Empty(t, notifier.all())
}

func TestMonitor_LedgerFailureDropsSellSilently(t *testing.T) {
	// Holdings snapshot unavailable: the event still processes, but with an
	// empty held set the sell cannot match.
	source := &fakeSource{
		chain:  domain.ChainSolana,
		events: []domain.WalletEvent{sellEvent("tx-4", "MintD")},
	}

	exec, notifier := runMonitor(t, source, &staticLedger{err: errors.New("redis down")})

	assert.Empty(t, drainExecuted(exec, 200*time.Millisecond))
	assert.Empty(t, notifier.all())
}

func TestMonitor_EmptyTxIDIgnored(t *testing.T) {
	ev := purchaseEvent("", "MintA")
	source := &fakeSource{chain: domain.ChainSolana, events: []domain.WalletEvent{ev}}

	exec, _ := runMonitor(t, source, &staticLedger{held: map[string]string{}})

	assert.Empty(t, drainExecuted(exec, 200*time.Millisecond))
}
