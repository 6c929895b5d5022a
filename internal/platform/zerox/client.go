// Package zerox is an HTTP client for the 0x Swap API v2 permit2 flow on
// Base, plus the trade-analytics endpoint used to reconstruct historical
// buys.
package zerox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

const defaultBaseURL = "https://api.0x.org"

// Client calls the 0x API. Every request carries the API key and the v2
// version header.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Client for the given API key. Empty baseURL selects
// the public endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// PriceRequest describes a swap to price or quote.
type PriceRequest struct {
	ChainID     int
	SellToken   string
	BuyToken    string
	SellAmount  string
	Taker       string
	SlippageBps int
}

// Price is an indicative price from /swap/permit2/price.
type Price struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	SellAmount         string `json:"sellAmount"`
}

// Quote is a firm quote from /swap/permit2/quote, carrying the settlement
// transaction and the permit2 typed data the taker must sign.
type Quote struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	Transaction        struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Gas   string `json:"gas"`
		Value string `json:"value"`
	} `json:"transaction"`
	Permit2 *struct {
		EIP712 json.RawMessage `json:"eip712"`
	} `json:"permit2"`
}

// GasLimit parses the quoted gas as an integer, padded by 20% since 0x
// estimates are occasionally tight for permit2 settlement.
func (q Quote) GasLimit() uint64 {
	gas, err := strconv.ParseUint(q.Transaction.Gas, 10, 64)
	if err != nil || gas == 0 {
		return 500_000
	}
	return gas + gas/5
}

// GetPrice fetches an indicative price. It returns domain.ErrNoRoute when
// 0x reports no liquidity for the pair.
func (c *Client) GetPrice(ctx context.Context, req PriceRequest) (Price, error) {
	var price Price
	if err := c.get(ctx, "/swap/permit2/price", req.values(), &price); err != nil {
		return Price{}, fmt.Errorf("zerox: price: %w", err)
	}
	if !price.LiquidityAvailable {
		return Price{}, fmt.Errorf("zerox: %s -> %s: %w", req.SellToken, req.BuyToken, domain.ErrNoRoute)
	}
	return price, nil
}

// GetQuote fetches a firm quote with settlement calldata. It returns
// domain.ErrNoRoute when liquidity disappeared between price and quote.
func (c *Client) GetQuote(ctx context.Context, req PriceRequest) (Quote, error) {
	var quote Quote
	if err := c.get(ctx, "/swap/permit2/quote", req.values(), &quote); err != nil {
		return Quote{}, fmt.Errorf("zerox: quote: %w", err)
	}
	if !quote.LiquidityAvailable {
		return Quote{}, fmt.Errorf("zerox: %s -> %s: %w", req.SellToken, req.BuyToken, domain.ErrNoRoute)
	}
	return quote, nil
}

func (r PriceRequest) values() url.Values {
	q := url.Values{}
	q.Set("chainId", strconv.Itoa(r.ChainID))
	q.Set("sellToken", r.SellToken)
	q.Set("buyToken", r.BuyToken)
	q.Set("sellAmount", r.SellAmount)
	if r.Taker != "" {
		q.Set("taker", r.Taker)
	}
	if r.SlippageBps > 0 {
		q.Set("slippageBps", strconv.Itoa(r.SlippageBps))
	}
	return q
}

// TradeRecord is one fill from the trade-analytics feed.
type TradeRecord struct {
	Taker      string `json:"taker"`
	BuyToken   string `json:"buyToken"`
	BuyAmount  string `json:"buyAmount"`
	SellToken  string `json:"sellToken"`
	SellAmount string `json:"sellAmount"`
	Timestamp  int64  `json:"timestamp"`
}

// Trades lists fills executed by taker on chainID since the given cursor
// time. 0x retains roughly a month of history.
func (c *Client) Trades(ctx context.Context, chainID int, taker string, since time.Time) ([]TradeRecord, error) {
	q := url.Values{}
	q.Set("chainId", strconv.Itoa(chainID))
	q.Set("taker", taker)
	q.Set("startTimestamp", strconv.FormatInt(since.Unix(), 10))

	var out struct {
		Trades []TradeRecord `json:"trades"`
	}
	if err := c.get(ctx, "/trade-analytics/swap", q, &out); err != nil {
		return nil, fmt.Errorf("zerox: trades: %w", err)
	}
	return out.Trades, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("0x-api-key", c.apiKey)
	req.Header.Set("0x-version", "v2")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body[:min(len(body), 256)]))
	}
	return json.Unmarshal(body, out)
}
