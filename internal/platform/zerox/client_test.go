package zerox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

func testServer(t *testing.T, wantPath string, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("0x-api-key"))
		assert.Equal(t, "v2", r.Header.Get("0x-version"))
		w.Write([]byte(body))
	}))
}

var req = PriceRequest{
	ChainID:     8453,
	SellToken:   "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
	BuyToken:    "0xtokenaaa",
	SellAmount:  "3000000000000000",
	Taker:       "0xtrader",
	SlippageBps: 300,
}

func TestGetPrice_Success(t *testing.T) {
	srv := testServer(t, "/swap/permit2/price",
		`{"liquidityAvailable":true,"buyAmount":"987654","sellAmount":"3000000000000000"}`)
	defer srv.Close()

	price, err := NewClient(srv.URL, "test-key").GetPrice(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "987654", price.BuyAmount)
}

func TestPriceRequest_Values(t *testing.T) {
	v := req.values()
	assert.Equal(t, "8453", v.Get("chainId"))
	assert.Equal(t, "3000000000000000", v.Get("sellAmount"))
	assert.Equal(t, "300", v.Get("slippageBps"))

	// Unset slippage defers to the API default rather than sending zero.
	noSlip := req
	noSlip.SlippageBps = 0
	assert.False(t, noSlip.values().Has("slippageBps"))
}

func TestGetPrice_NoLiquidity(t *testing.T) {
	srv := testServer(t, "/swap/permit2/price", `{"liquidityAvailable":false}`)
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key").GetPrice(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNoRoute)
}

func TestGetQuote_Success(t *testing.T) {
	srv := testServer(t, "/swap/permit2/quote", `{
		"liquidityAvailable": true,
		"buyAmount": "987654",
		"transaction": {
			"to": "0xsettler",
			"data": "0xdeadbeef",
			"gas": "250000",
			"value": "3000000000000000"
		},
		"permit2": {"eip712": {"types":{},"domain":{},"message":{},"primaryType":"PermitTransferFrom"}}
	}`)
	defer srv.Close()

	quote, err := NewClient(srv.URL, "test-key").GetQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0xsettler", quote.Transaction.To)
	assert.Equal(t, "0xdeadbeef", quote.Transaction.Data)
	require.NotNil(t, quote.Permit2)
	assert.NotEmpty(t, quote.Permit2.EIP712)
}

func TestGetQuote_NoLiquidity(t *testing.T) {
	srv := testServer(t, "/swap/permit2/quote", `{"liquidityAvailable":false}`)
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key").GetQuote(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNoRoute)
}

func TestQuote_GasLimitPadding(t *testing.T) {
	q := Quote{}
	q.Transaction.Gas = "100000"
	assert.Equal(t, uint64(120000), q.GasLimit())

	q.Transaction.Gas = "garbage"
	assert.Equal(t, uint64(500000), q.GasLimit())

	q.Transaction.Gas = ""
	assert.Equal(t, uint64(500000), q.GasLimit())
}

func TestTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-analytics/swap", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "8453", q.Get("chainId"))
		assert.Equal(t, "0xtrader", q.Get("taker"))
		assert.NotEmpty(t, q.Get("startTimestamp"))

		w.Write([]byte(`{"trades":[
			{"taker":"0xtrader","buyToken":"0xtokenaaa","buyAmount":"500","sellToken":"0xeeee","sellAmount":"100","timestamp":1756000000}
		]}`))
	}))
	defer srv.Close()

	trades, err := NewClient(srv.URL, "test-key").Trades(context.Background(), 8453, "0xtrader", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "0xtokenaaa", trades[0].BuyToken)
	assert.Equal(t, "500", trades[0].BuyAmount)
}

func TestGet_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"reason":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key").GetPrice(context.Background(), req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoRoute)
}
