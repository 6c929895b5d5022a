// Package jupiter is an HTTP client for the Jupiter v6 swap aggregator,
// which prices and builds SOL-to-token swaps on Solana.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

const (
	defaultBaseURL      = "https://quote-api.jup.ag/v6"
	defaultTokenListURL = "https://token.jup.ag"
)

// Client calls the Jupiter quote, swap, and token-list endpoints.
type Client struct {
	baseURL      string
	tokenListURL string
	http         *http.Client
}

// NewClient creates a Client. Empty baseURL selects the public v6 API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenListURL: defaultTokenListURL,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// QuoteResponse is a priced route. Raw preserves the full quote body, which
// the swap endpoint requires verbatim.
type QuoteResponse struct {
	OutAmount string
	Raw       json.RawMessage
}

// Quote requests a route for swapping amount base units of inputMint into
// outputMint. It returns domain.ErrNoRoute when Jupiter reports that no
// route exists, distinct from transport or server failures.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (QuoteResponse, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("restrictIntermediateTokens", "true")

	body, status, err := c.get(ctx, c.baseURL+"/quote?"+q.Encode())
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("jupiter: quote: %w", err)
	}

	// Jupiter signals routing failures in a JSON error body.
	var apiErr struct {
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		if apiErr.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" ||
			strings.Contains(strings.ToLower(apiErr.Error), "no route") {
			return QuoteResponse{}, fmt.Errorf("jupiter: %s: %w", apiErr.Error, domain.ErrNoRoute)
		}
		return QuoteResponse{}, fmt.Errorf("jupiter: quote: %s", apiErr.Error)
	}
	if status != http.StatusOK {
		return QuoteResponse{}, fmt.Errorf("jupiter: quote: unexpected status %d", status)
	}

	var quote struct {
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &quote); err != nil {
		return QuoteResponse{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	if quote.OutAmount == "" {
		return QuoteResponse{}, fmt.Errorf("jupiter: empty quote")
	}

	return QuoteResponse{OutAmount: quote.OutAmount, Raw: body}, nil
}

// Swap asks Jupiter to build a serialized swap transaction for the given
// quote, signed externally by userPublicKey. Dynamic slippage and priority
// fees are enabled so the transaction lands during volatile launches.
func (c *Client) Swap(ctx context.Context, quote QuoteResponse, userPublicKey string) (string, error) {
	payload := map[string]any{
		"quoteResponse":    quote.Raw,
		"userPublicKey":    userPublicKey,
		"wrapAndUnwrapSol": true,
		"dynamicSlippage": map[string]int{
			"minBps": 50,
			"maxBps": 1000,
		},
		"prioritizationFeeLamports": map[string]any{
			"priorityLevelWithMaxLamports": map[string]any{
				"maxLamports":   10_000_000,
				"priorityLevel": "veryHigh",
			},
		},
		"dynamicComputeUnitLimit": true,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("jupiter: create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("jupiter: swap: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("jupiter: read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jupiter: swap: unexpected status %d: %s", resp.StatusCode, string(body[:min(len(body), 256)]))
	}

	var swap struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &swap); err != nil {
		return "", fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if swap.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter: swap response missing transaction")
	}
	return swap.SwapTransaction, nil
}

// TokenInfo is one entry of the Jupiter token list.
type TokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// TokenList fetches token metadata. strict selects the curated list; the
// full list is much larger but covers freshly launched tokens.
func (c *Client) TokenList(ctx context.Context, strict bool) ([]TokenInfo, error) {
	path := "/all"
	if strict {
		path = "/strict"
	}
	body, status, err := c.get(ctx, c.tokenListURL+path)
	if err != nil {
		return nil, fmt.Errorf("jupiter: token list: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("jupiter: token list: unexpected status %d", status)
	}

	var tokens []TokenInfo
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("jupiter: decode token list: %w", err)
	}
	return tokens, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
