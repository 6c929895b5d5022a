package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// callLog records cross-collaborator call ordering so tests can assert, for
// example, that the ledger write lands before the success notification.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *callLog) indexOf(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeBroker struct {
	log *callLog

	balance    *big.Int
	balanceErr error

	quoteErr   func(call int) error
	buildErr   func(call int) error
	signErr    func(call int) error
	submitErr  func(call int) error
	confirmErr func(call int) error

	tokenBalance    string
	tokenBalanceErr error

	quoteCalls, confirmCalls int
}

func newFakeBroker(log *callLog) *fakeBroker {
	return &fakeBroker{
		log:          log,
		balance:      big.NewInt(1_000_000_000),
		tokenBalance: "999",
	}
}

func (b *fakeBroker) Quote(ctx context.Context, token string) (Quote, error) {
	b.quoteCalls++
	b.log.add("quote")
	if b.quoteErr != nil {
		if err := b.quoteErr(b.quoteCalls); err != nil {
			return Quote{}, err
		}
	}
	return Quote{EstimatedOut: "1000", Payload: token}, nil
}

func (b *fakeBroker) Build(ctx context.Context, q Quote) (PreparedSwap, error) {
	b.log.add("build")
	if b.buildErr != nil {
		if err := b.buildErr(0); err != nil {
			return PreparedSwap{}, err
		}
	}
	return PreparedSwap{Payload: q.Payload}, nil
}

func (b *fakeBroker) Sign(ctx context.Context, p PreparedSwap) (SignedSwap, error) {
	b.log.add("sign")
	if b.signErr != nil {
		if err := b.signErr(0); err != nil {
			return SignedSwap{}, err
		}
	}
	return SignedSwap{Payload: p.Payload}, nil
}

func (b *fakeBroker) Submit(ctx context.Context, s SignedSwap) (string, error) {
	b.log.add("submit")
	if b.submitErr != nil {
		if err := b.submitErr(0); err != nil {
			return "", err
		}
	}
	return "tx-abc", nil
}

func (b *fakeBroker) Confirm(ctx context.Context, txID string) error {
	b.confirmCalls++
	b.log.add("confirm")
	if b.confirmErr != nil {
		return b.confirmErr(b.confirmCalls)
	}
	return nil
}

func (b *fakeBroker) SpendableBalance(ctx context.Context) (*big.Int, error) {
	b.log.add("balance")
	return b.balance, b.balanceErr
}

func (b *fakeBroker) TokenBalance(ctx context.Context, token string) (string, error) {
	b.log.add("token_balance")
	return b.tokenBalance, b.tokenBalanceErr
}

type fakeLedger struct {
	log *callLog

	mu     sync.Mutex
	held   map[string]string
	hasErr error
	addErr error
}

func newFakeLedger(log *callLog) *fakeLedger {
	return &fakeLedger{log: log, held: map[string]string{}}
}

func (l *fakeLedger) Add(ctx context.Context, chain domain.Chain, token, amount string) error {
	l.log.add("ledger_add")
	if l.addErr != nil {
		return l.addErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[token] = amount
	return nil
}

func (l *fakeLedger) Remove(ctx context.Context, chain domain.Chain, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, token)
	return nil
}

func (l *fakeLedger) Has(ctx context.Context, chain domain.Chain, token string) (bool, error) {
	l.log.add("ledger_has")
	if l.hasErr != nil {
		return false, l.hasErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[token]
	return ok, nil
}

func (l *fakeLedger) All(ctx context.Context, chain domain.Chain) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.held))
	for k, v := range l.held {
		out[k] = v
	}
	return out, nil
}

type fakeNotifier struct {
	log    *callLog
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	n.log.add("notify:" + event)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fakeTradeStore struct {
	mu     sync.Mutex
	trades []domain.CopyTrade
}

func (s *fakeTradeStore) Insert(ctx context.Context, t domain.CopyTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *fakeTradeStore) ListRecent(ctx context.Context, chain domain.Chain, limit int) ([]domain.CopyTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CopyTrade(nil), s.trades...), nil
}

type harness struct {
	log      *callLog
	broker   *fakeBroker
	ledger   *fakeLedger
	notifier *fakeNotifier
	store    *fakeTradeStore
	exec     *Executor
	slept    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := &callLog{}
	h := &harness{
		log:      log,
		broker:   newFakeBroker(log),
		ledger:   newFakeLedger(log),
		notifier: &fakeNotifier{log: log},
		store:    &fakeTradeStore{},
	}

	cfg := domain.TradeConfig{
		AmountIn:    big.NewInt(10_000_000),
		FeeBuffer:   big.NewInt(5_000_000),
		SlippageBps: 300,
	}
	h.exec = New(domain.ChainSolana, cfg, h.broker, h.ledger, h.notifier, slog.Default())
	h.exec.SetTradeStore(h.store)
	h.exec.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return ctx.Err()
	}
	return h
}

func purchase(token string) domain.Decision {
	return domain.Decision{
		Kind:     domain.DecisionPurchase,
		Token:    token,
		Wallet:   domain.WatchedWallet{Label: "whale", Address: "addr"},
		SourceTx: "source-tx",
		Amount:   big.NewInt(100),
		Prior:    big.NewInt(0),
	}
}

func TestExecute_Success(t *testing.T) {
	h := newHarness(t)

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	require.Equal(t, domain.TradeSucceeded, res.Status)
	assert.Equal(t, "tx-abc", res.TxID)
	assert.Equal(t, "999", res.AmountOut, "amount out comes from the balance read-back, not the quote")
	assert.Equal(t, 1, res.Attempts)

	held, err := h.ledger.Has(context.Background(), domain.ChainSolana, "MintXYZ")
	require.NoError(t, err)
	assert.True(t, held)

	assert.Equal(t, []string{"trade_success"}, h.notifier.events)

	require.Len(t, h.store.trades, 1)
	trade := h.store.trades[0]
	assert.Equal(t, domain.TradeSucceeded, trade.Status)
	assert.Equal(t, "source-tx", trade.SourceTxID)
	assert.Equal(t, "10000000", trade.AmountIn)
}

func TestExecute_LedgerWriteBeforeSuccessNotification(t *testing.T) {
	h := newHarness(t)

	h.exec.Execute(context.Background(), purchase("MintXYZ"))

	add := h.log.indexOf("ledger_add")
	notify := h.log.indexOf("notify:trade_success")
	require.GreaterOrEqual(t, add, 0)
	require.GreaterOrEqual(t, notify, 0)
	assert.Less(t, add, notify, "ledger must reflect the trade before the operator hears about it: %v", h.log.all())
}

func TestExecute_AlreadyHeldSkipsWithoutBrokerCalls(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ledger.Add(context.Background(), domain.ChainSolana, "MintXYZ", "5"))

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeSkipped, res.Status)
	assert.Equal(t, domain.SkipAlreadyHeld, res.SkipReason)
	assert.Zero(t, h.broker.quoteCalls)
	assert.Equal(t, []string{"trade_skip"}, h.notifier.events)
}

func TestExecute_AccumulationSkipped(t *testing.T) {
	h := newHarness(t)

	dec := purchase("MintXYZ")
	dec.Prior = big.NewInt(250)

	res := h.exec.Execute(context.Background(), dec)

	assert.Equal(t, domain.TradeSkipped, res.Status)
	assert.Equal(t, domain.SkipAccumulation, res.SkipReason)
	assert.Zero(t, h.broker.quoteCalls)
}

func TestExecute_InsufficientFundsSkipped(t *testing.T) {
	h := newHarness(t)
	h.broker.balance = big.NewInt(14_999_999) // one below AmountIn + FeeBuffer

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeSkipped, res.Status)
	assert.Equal(t, domain.SkipInsufficientFunds, res.SkipReason)
	assert.ErrorIs(t, res.Err, domain.ErrInsufficientFunds)
	assert.Zero(t, h.broker.quoteCalls)
}

func TestExecute_NoRouteTerminalSkip(t *testing.T) {
	h := newHarness(t)
	h.broker.quoteErr = func(int) error {
		return fmt.Errorf("jupiter: quote: %w", domain.ErrNoRoute)
	}

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeSkipped, res.Status)
	assert.Equal(t, domain.SkipNoRoute, res.SkipReason)
	assert.Equal(t, 1, res.Attempts, "no-route is never retried")
	assert.Empty(t, h.slept)
	assert.Equal(t, []string{"trade_skip"}, h.notifier.events)
}

func TestExecute_TransientFailureRetriesFromQuote(t *testing.T) {
	h := newHarness(t)
	h.broker.confirmErr = func(call int) error {
		if call <= 2 {
			return domain.ErrReverted
		}
		return nil
	}

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	require.Equal(t, domain.TradeSucceeded, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, h.broker.quoteCalls, "each retry restarts from a fresh quote")
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, h.slept)
}

func TestExecute_ExhaustedRetriesFail(t *testing.T) {
	h := newHarness(t)
	h.broker.confirmErr = func(int) error { return domain.ErrReverted }

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeFailed, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrReverted)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, h.slept)
	assert.Equal(t, []string{"trade_failure"}, h.notifier.events)

	held, err := h.ledger.Has(context.Background(), domain.ChainSolana, "MintXYZ")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestExecute_BalanceReadbackFallsBackToQuote(t *testing.T) {
	h := newHarness(t)
	h.broker.tokenBalanceErr = errors.New("rpc timeout")

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	require.Equal(t, domain.TradeSucceeded, res.Status)
	assert.Equal(t, "1000", res.AmountOut)
}

func TestExecute_LedgerFailureDoesNotFailTrade(t *testing.T) {
	h := newHarness(t)
	h.ledger.addErr = errors.New("redis down")

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeSucceeded, res.Status)
	assert.Equal(t, []string{"trade_success"}, h.notifier.events)
}

func TestExecute_LedgerReadFailureTreatedAsNotHeld(t *testing.T) {
	h := newHarness(t)
	h.ledger.hasErr = errors.New("redis down")

	res := h.exec.Execute(context.Background(), purchase("MintXYZ"))

	assert.Equal(t, domain.TradeSucceeded, res.Status)
}

func TestExecute_CancelledContextAbandonsSilently(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	h.broker.confirmErr = func(int) error {
		cancel() // shutdown arrives mid-trade
		return domain.ErrReverted
	}

	res := h.exec.Execute(ctx, purchase("MintXYZ"))

	assert.Equal(t, domain.TradeFailed, res.Status)
	assert.Empty(t, h.notifier.events, "abandoned trades are not alerted")
}

func TestExecute_NonPurchaseRejected(t *testing.T) {
	h := newHarness(t)

	res := h.exec.Execute(context.Background(), domain.Decision{Kind: domain.DecisionSell, Token: "MintXYZ"})

	assert.Equal(t, domain.TradeSkipped, res.Status)
	assert.Zero(t, h.broker.quoteCalls)
}
