package holdings

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/jupiter"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
)

type fakeLedger struct {
	positions map[domain.Chain]map[string]string
	removed   []string
	allErr    error
}

func (l *fakeLedger) Add(ctx context.Context, chain domain.Chain, token, amount string) error {
	return nil
}

func (l *fakeLedger) Remove(ctx context.Context, chain domain.Chain, token string) error {
	l.removed = append(l.removed, token)
	return nil
}

func (l *fakeLedger) Has(ctx context.Context, chain domain.Chain, token string) (bool, error) {
	_, ok := l.positions[chain][token]
	return ok, nil
}

func (l *fakeLedger) All(ctx context.Context, chain domain.Chain) (map[string]string, error) {
	if l.allErr != nil {
		return nil, l.allErr
	}
	return l.positions[chain], nil
}

type fakeBaseMeta struct {
	symbols  map[string]string
	balances map[string]*big.Int
}

func (m *fakeBaseMeta) TokenMetadata(ctx context.Context, token string) (string, string) {
	sym := m.symbols[token]
	return sym, sym + " Token"
}

func (m *fakeBaseMeta) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	bal, ok := m.balances[token]
	if !ok {
		return nil, errors.New("balance unavailable")
	}
	return bal, nil
}

type fakePricer struct {
	reqs   []zerox.PriceRequest
	prices map[string]string // sell token -> USDC base units
}

func (p *fakePricer) GetPrice(ctx context.Context, req zerox.PriceRequest) (zerox.Price, error) {
	p.reqs = append(p.reqs, req)
	buy, ok := p.prices[req.SellToken]
	if !ok {
		return zerox.Price{}, domain.ErrNoRoute
	}
	return zerox.Price{LiquidityAvailable: true, BuyAmount: buy}, nil
}

type fakeSolanaMeta struct {
	list []jupiter.TokenInfo
}

func (m *fakeSolanaMeta) TokenList(ctx context.Context, strict bool) ([]jupiter.TokenInfo, error) {
	return m.list, nil
}

func TestReport_BasePositionValuedInUSDC(t *testing.T) {
	ledger := &fakeLedger{positions: map[domain.Chain]map[string]string{
		domain.ChainBase: {"0xtokenaaa": "500000"},
	}}
	meta := &fakeBaseMeta{
		symbols:  map[string]string{"0xtokenaaa": "AAA"},
		balances: map[string]*big.Int{"0xtokenaaa": big.NewInt(750_000)},
	}
	pricer := &fakePricer{prices: map[string]string{"0xtokenaaa": "12345678"}} // $12.34

	r := NewReporter(ledger, []domain.Chain{domain.ChainBase}, nil, meta, pricer, "0xtrader", slog.Default())

	out, err := r.Report(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "*AAA* (AAA Token)")
	assert.Contains(t, out, "~$12.34")

	// The quote sells the live balance, not the recorded amount, into USDC.
	require.Len(t, pricer.reqs, 1)
	assert.Equal(t, "750000", pricer.reqs[0].SellAmount)
	assert.Equal(t, baseUSDC, pricer.reqs[0].BuyToken)
	assert.Equal(t, "0xtrader", pricer.reqs[0].Taker)
}

func TestReport_LiquidatedBasePositionRemoved(t *testing.T) {
	ledger := &fakeLedger{positions: map[domain.Chain]map[string]string{
		domain.ChainBase: {"0xgone": ""},
	}}
	meta := &fakeBaseMeta{balances: map[string]*big.Int{"0xgone": big.NewInt(0)}}

	r := NewReporter(ledger, []domain.Chain{domain.ChainBase}, nil, meta, &fakePricer{}, "0xtrader", slog.Default())

	out, err := r.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xgone"}, ledger.removed)
	assert.NotContains(t, out, "0xgone")
}

func TestReport_PriceFailureOmitsValue(t *testing.T) {
	ledger := &fakeLedger{positions: map[domain.Chain]map[string]string{
		domain.ChainBase: {"0xilliquid": ""},
	}}
	meta := &fakeBaseMeta{
		symbols:  map[string]string{"0xilliquid": "ILQ"},
		balances: map[string]*big.Int{"0xilliquid": big.NewInt(1)},
	}

	r := NewReporter(ledger, []domain.Chain{domain.ChainBase}, nil, meta, &fakePricer{}, "0xtrader", slog.Default())

	out, err := r.Report(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "*ILQ*")
	assert.NotContains(t, out, "~$")
	assert.Empty(t, ledger.removed)
}

func TestReport_SolanaAmountRendered(t *testing.T) {
	ledger := &fakeLedger{positions: map[domain.Chain]map[string]string{
		domain.ChainSolana: {"MintAAA": "123456"},
	}}
	meta := &fakeSolanaMeta{list: []jupiter.TokenInfo{
		{Address: "MintAAA", Symbol: "AAA", Name: "Token A"},
	}}

	r := NewReporter(ledger, []domain.Chain{domain.ChainSolana}, meta, nil, nil, "", slog.Default())

	out, err := r.Report(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "*AAA* (Token A) - 123456")
}

func TestFormatUSDC(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12345678", "12.34", true},
		{"1000000", "1.00", true},
		{"5000", "0.00", true},
		{"0", "0.00", true},
		{"garbage", "", false},
	}
	for _, tc := range cases {
		got, ok := formatUSDC(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
