package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client is a Solana JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Uint64
}

// NewClient creates a Client for the given RPC endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// call performs one JSON-RPC request and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("solana: marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solana: create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("solana: %s: unexpected status %d: %s", method, resp.StatusCode, string(b))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana: %s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("solana: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// GetTransaction fetches a confirmed transaction with its balance metadata.
// It returns nil when the transaction is not yet queryable.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []any{
		signature,
		map[string]any{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}
	var tx *Transaction
	if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// GetBalance returns an address's lamport balance.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	params := []any{address, map[string]string{"commitment": "confirmed"}}
	var res struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", params, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// GetTokenAccountsByOwner lists an owner's SPL token accounts. Pass a mint to
// filter to one token, or empty to list every account under the token
// program.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error) {
	filter := map[string]string{"programId": TokenProgramID}
	if mint != "" {
		filter = map[string]string{"mint": mint}
	}
	params := []any{
		owner,
		filter,
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}

	var res struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string        `json:"mint"`
							TokenAmount UITokenAmount `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &res); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(res.Value))
	for _, v := range res.Value {
		accounts = append(accounts, TokenAccount{
			Pubkey: v.Pubkey,
			Mint:   v.Account.Data.Parsed.Info.Mint,
			Amount: v.Account.Data.Parsed.Info.TokenAmount,
		})
	}
	return accounts, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns its
// signature. Preflight is skipped; failures surface during confirmation.
func (c *Client) SendTransaction(ctx context.Context, signedBase64 string) (string, error) {
	params := []any{
		signedBase64,
		map[string]any{
			"encoding":      "base64",
			"skipPreflight": true,
			"maxRetries":    2,
		},
	}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatus returns the confirmation status of one signature, or nil
// when the cluster does not know it yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	params := []any{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	}
	var res struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &res); err != nil {
		return nil, err
	}
	if len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}
