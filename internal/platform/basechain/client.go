// Package basechain wraps go-ethereum access to the Base L2: ERC-20
// Transfer subscriptions for watched wallets, token metadata reads, and
// EIP-1559 transaction signing for swap settlement.
package basechain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainID is the Base mainnet chain id.
const ChainID = 8453

// NativeToken is the pseudo-address aggregators use for raw ETH.
const NativeToken = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Client is a Base RPC client over a websocket endpoint so a single
// connection serves both subscriptions and calls.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to the Base websocket RPC endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("basechain: dial %s: %w", endpoint, err)
	}
	return &Client{eth: eth}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// SubscribeTransfers subscribes to ERC-20 Transfer logs where any of the
// given wallets is sender or recipient. Two subscriptions are needed since
// a log filter cannot OR across topic positions.
func (c *Client) SubscribeTransfers(ctx context.Context, wallets []string, logs chan<- types.Log) ([]ethereum.Subscription, error) {
	topics := make([]common.Hash, 0, len(wallets))
	for _, w := range wallets {
		topics = append(topics, common.BytesToHash(common.HexToAddress(w).Bytes()))
	}

	outgoing := ethereum.FilterQuery{
		Topics: [][]common.Hash{{TransferTopic}, topics},
	}
	incoming := ethereum.FilterQuery{
		Topics: [][]common.Hash{{TransferTopic}, nil, topics},
	}

	subOut, err := c.eth.SubscribeFilterLogs(ctx, outgoing, logs)
	if err != nil {
		return nil, fmt.Errorf("basechain: subscribe outgoing transfers: %w", err)
	}
	subIn, err := c.eth.SubscribeFilterLogs(ctx, incoming, logs)
	if err != nil {
		subOut.Unsubscribe()
		return nil, fmt.Errorf("basechain: subscribe incoming transfers: %w", err)
	}
	return []ethereum.Subscription{subOut, subIn}, nil
}

// TransactionReceipt fetches the receipt for hash, retrying briefly since a
// subscription can deliver a log before the node indexes the receipt.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var lastErr error
	for i := 0; i < 5; i++ {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("basechain: receipt %s: %w", hash.Hex(), lastErr)
}

// TransactionOrigin returns the sender and attached ETH value of the
// transaction with the given hash. A swap that spends raw ETH carries the
// spend in the transaction value rather than in any Transfer log.
func (c *Client) TransactionOrigin(ctx context.Context, hash common.Hash) (from common.Address, value *big.Int, err error) {
	tx, pending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("basechain: transaction %s: %w", hash.Hex(), err)
	}
	if pending {
		return common.Address{}, nil, fmt.Errorf("basechain: transaction %s still pending", hash.Hex())
	}
	from, err = types.Sender(types.LatestSignerForChainID(big.NewInt(ChainID)), tx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("basechain: recover sender of %s: %w", hash.Hex(), err)
	}
	return from, tx.Value(), nil
}

// BalanceAt returns the current ETH balance of addr in wei.
func (c *Client) BalanceAt(ctx context.Context, addr string) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("basechain: balance of %s: %w", addr, err)
	}
	return bal, nil
}

// erc20 selectors.
var (
	selBalanceOf = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selSymbol    = crypto.Keccak256([]byte("symbol()"))[:4]
	selName      = crypto.Keccak256([]byte("name()"))[:4]
)

// TokenBalance returns the ERC-20 balance of owner for token, in base units.
func (c *Client) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, selBalanceOf...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)

	to := common.HexToAddress(token)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("basechain: balanceOf %s: %w", token, err)
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("basechain: balanceOf %s: short return", token)
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// TokenMetadata reads the symbol and name of an ERC-20 token. Both are
// best-effort; tokens with non-standard metadata return empty strings.
func (c *Client) TokenMetadata(ctx context.Context, token string) (symbol, name string) {
	to := common.HexToAddress(token)
	if out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: selSymbol}, nil); err == nil {
		symbol = decodeString(out)
	}
	if out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: selName}, nil); err == nil {
		name = decodeString(out)
	}
	return symbol, name
}

// decodeString handles the ABI dynamic-string return layout.
func decodeString(out []byte) string {
	if len(out) < 64 {
		return ""
	}
	offset := new(big.Int).SetBytes(out[:32]).Uint64()
	if offset+32 > uint64(len(out)) {
		return ""
	}
	length := new(big.Int).SetBytes(out[offset : offset+32]).Uint64()
	if offset+32+length > uint64(len(out)) {
		return ""
	}
	return strings.TrimRight(string(out[offset+32:offset+32+length]), "\x00")
}

// Signer signs and submits EIP-1559 transactions for one account.
type Signer struct {
	client *Client
	key    *ecdsa.PrivateKey
	addr   common.Address
	signer types.Signer
}

// NewSigner builds a Signer from a hex-encoded secp256k1 private key.
func NewSigner(client *Client, privateKeyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("basechain: parse private key: %w", err)
	}
	return &Signer{
		client: client,
		key:    key,
		addr:   crypto.PubkeyToAddress(key.PublicKey),
		signer: types.LatestSignerForChainID(big.NewInt(ChainID)),
	}, nil
}

// Address returns the signer's checksummed account address.
func (s *Signer) Address() string {
	return s.addr.Hex()
}

// Key exposes the private key for EIP-712 typed-data signatures (permit2).
func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}

// SendTransaction signs and broadcasts a call to `to` with the given
// calldata, value and gas limit, returning the transaction hash.
func (s *Signer) SendTransaction(ctx context.Context, to string, data []byte, value *big.Int, gasLimit uint64) (string, error) {
	nonce, err := s.client.eth.PendingNonceAt(ctx, s.addr)
	if err != nil {
		return "", fmt.Errorf("basechain: nonce: %w", err)
	}
	tipCap, err := s.client.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("basechain: gas tip: %w", err)
	}
	head, err := s.client.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("basechain: head: %w", err)
	}
	// baseFee*2 + tip leaves headroom for one full base-fee doubling.
	feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)

	toAddr := common.HexToAddress(to)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(ChainID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &toAddr,
		Value:     value,
		Data:      data,
	})

	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return "", fmt.Errorf("basechain: sign transaction: %w", err)
	}
	if err := s.client.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("basechain: send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// WaitMined polls for the receipt of hash until mined or ctx expires.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
