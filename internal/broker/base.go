package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/executor"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
)

// baseConfirmTimeout bounds receipt polling on Base. Blocks land every two
// seconds, so a minute covers heavy sequencer backlog.
const baseConfirmTimeout = 60 * time.Second

// BaseBroker executes ETH-to-token swaps through the 0x permit2 flow.
type BaseBroker struct {
	client *basechain.Client
	zx     *zerox.Client
	signer *basechain.Signer
	cfg    domain.TradeConfig
	logger *slog.Logger
}

// NewBaseBroker wires the Base RPC client, the 0x API and the operator
// signer into one TradeBroker.
func NewBaseBroker(client *basechain.Client, zx *zerox.Client, signer *basechain.Signer, cfg domain.TradeConfig, logger *slog.Logger) *BaseBroker {
	return &BaseBroker{
		client: client,
		zx:     zx,
		signer: signer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "base_broker")),
	}
}

func (b *BaseBroker) priceRequest(token string) zerox.PriceRequest {
	return zerox.PriceRequest{
		ChainID:     basechain.ChainID,
		SellToken:   basechain.NativeToken,
		BuyToken:    token,
		SellAmount:  b.cfg.AmountIn.String(),
		Taker:       b.signer.Address(),
		SlippageBps: b.cfg.SlippageBps,
	}
}

func (b *BaseBroker) Quote(ctx context.Context, token string) (executor.Quote, error) {
	price, err := b.zx.GetPrice(ctx, b.priceRequest(token))
	if err != nil {
		return executor.Quote{}, err
	}
	return executor.Quote{EstimatedOut: price.BuyAmount, Payload: token}, nil
}

func (b *BaseBroker) Build(ctx context.Context, q executor.Quote) (executor.PreparedSwap, error) {
	token, ok := q.Payload.(string)
	if !ok {
		return executor.PreparedSwap{}, fmt.Errorf("broker: unexpected quote payload %T", q.Payload)
	}
	quote, err := b.zx.GetQuote(ctx, b.priceRequest(token))
	if err != nil {
		return executor.PreparedSwap{}, err
	}
	return executor.PreparedSwap{Payload: quote}, nil
}

// signedBaseSwap is the fully assembled settlement call, held between the
// sign and submit states.
type signedBaseSwap struct {
	to       string
	data     []byte
	value    *big.Int
	gasLimit uint64
}

func (b *BaseBroker) Sign(_ context.Context, p executor.PreparedSwap) (executor.SignedSwap, error) {
	quote, ok := p.Payload.(zerox.Quote)
	if !ok {
		return executor.SignedSwap{}, fmt.Errorf("broker: unexpected swap payload %T", p.Payload)
	}

	calldata, err := hexutil.Decode(quote.Transaction.Data)
	if err != nil {
		return executor.SignedSwap{}, fmt.Errorf("broker: decode settlement calldata: %w", err)
	}
	calldata, err = zerox.SignPermit2(quote, calldata, b.signer.Key())
	if err != nil {
		return executor.SignedSwap{}, err
	}

	value := new(big.Int)
	if quote.Transaction.Value != "" {
		if _, ok := value.SetString(quote.Transaction.Value, 10); !ok {
			return executor.SignedSwap{}, fmt.Errorf("broker: parse settlement value %q", quote.Transaction.Value)
		}
	}

	return executor.SignedSwap{Payload: signedBaseSwap{
		to:       quote.Transaction.To,
		data:     calldata,
		value:    value,
		gasLimit: quote.GasLimit(),
	}}, nil
}

func (b *BaseBroker) Submit(ctx context.Context, s executor.SignedSwap) (string, error) {
	swap, ok := s.Payload.(signedBaseSwap)
	if !ok {
		return "", fmt.Errorf("broker: unexpected signed payload %T", s.Payload)
	}
	return b.signer.SendTransaction(ctx, swap.to, swap.data, swap.value, swap.gasLimit)
}

func (b *BaseBroker) Confirm(ctx context.Context, txID string) error {
	ctx, cancel := context.WithTimeout(ctx, baseConfirmTimeout)
	defer cancel()

	receipt, err := b.client.WaitMined(ctx, common.HexToHash(txID))
	if err != nil {
		return fmt.Errorf("broker: confirm %s: %w", txID, err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("broker: transaction %s reverted: %w", txID, domain.ErrReverted)
	}
	return nil
}

func (b *BaseBroker) SpendableBalance(ctx context.Context) (*big.Int, error) {
	return b.client.BalanceAt(ctx, b.signer.Address())
}

func (b *BaseBroker) TokenBalance(ctx context.Context, token string) (string, error) {
	bal, err := b.client.TokenBalance(ctx, token, b.signer.Address())
	if err != nil {
		return "", err
	}
	return bal.String(), nil
}
