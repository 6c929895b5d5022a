// Package solana is a minimal Solana JSON-RPC 2.0 client covering exactly
// what the copy-trade pipeline needs: transaction lookup with token balance
// metadata, balance reads, transaction submission and confirmation, and a
// WebSocket logs subscription with automatic reconnect.
package solana

import "encoding/json"

// Well-known addresses.
const (
	// WSOLMint is the wrapped SOL mint, used as the sell side of every quote.
	WSOLMint = "So11111111111111111111111111111111111111112"
	// TokenProgramID owns all SPL token accounts.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UITokenAmount is the token-amount object embedded in balance entries.
type UITokenAmount struct {
	Amount   string  `json:"amount"`
	Decimals int     `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}

// TokenBalance is one pre/post token balance entry of a transaction's meta.
type TokenBalance struct {
	AccountIndex int           `json:"accountIndex"`
	Mint         string        `json:"mint"`
	Owner        string        `json:"owner"`
	UITokenAmt   UITokenAmount `json:"uiTokenAmount"`
}

// TransactionMeta carries the balance movements of a confirmed transaction.
type TransactionMeta struct {
	Err               any            `json:"err"`
	Fee               uint64         `json:"fee"`
	PreBalances       []uint64       `json:"preBalances"`
	PostBalances      []uint64       `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// TransactionMessage is the static part of a transaction we care about.
type TransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// Transaction is a confirmed transaction as returned by getTransaction with
// "json" encoding.
type Transaction struct {
	Slot        int64            `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction struct {
		Signatures []string           `json:"signatures"`
		Message    TransactionMessage `json:"message"`
	} `json:"transaction"`
}

// TokenAccount is one entry of getTokenAccountsByOwner with jsonParsed
// encoding, flattened to the fields the pipeline reads.
type TokenAccount struct {
	Pubkey string
	Mint   string
	Amount UITokenAmount
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	ConfirmationStatus string `json:"confirmationStatus"`
	Err                any    `json:"err"`
}

// LogsNotification is one logsSubscribe push: the signature of a transaction
// mentioning a subscribed address.
type LogsNotification struct {
	Signature string
	Err       any
	// Address is the watched address whose subscription produced this
	// notification.
	Address string
}
