// Package holdings renders the operator's current positions for the
// /holdings command, enriching raw token addresses with metadata from the
// Jupiter token list (Solana) and on-chain ERC-20 reads (Base).
package holdings

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/basechain"
	"github.com/alanyoungcy/mirrorbot/internal/platform/jupiter"
	"github.com/alanyoungcy/mirrorbot/internal/platform/zerox"
)

// tokenListTTL bounds how long the cached Jupiter token list is reused.
const tokenListTTL = time.Hour

// baseUSDC is the USDC contract on Base, the unit every position is valued
// in.
const baseUSDC = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"

// SolanaMetadata resolves Solana token metadata. Implemented by
// jupiter.Client.
type SolanaMetadata interface {
	TokenList(ctx context.Context, strict bool) ([]jupiter.TokenInfo, error)
}

// BaseMetadata resolves Base token metadata and balances. Implemented by
// basechain.Client.
type BaseMetadata interface {
	TokenMetadata(ctx context.Context, token string) (symbol, name string)
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
}

// BasePricer values Base positions in USDC. Implemented by zerox.Client.
type BasePricer interface {
	GetPrice(ctx context.Context, req zerox.PriceRequest) (zerox.Price, error)
}

// Reporter formats the holdings ledger into an operator-facing message.
type Reporter struct {
	ledger   domain.HoldingsLedger
	chains   []domain.Chain
	solana   SolanaMetadata
	base     BaseMetadata
	pricer   BasePricer
	baseAddr string
	logger   *slog.Logger

	mu          sync.Mutex
	tokenByMint map[string]jupiter.TokenInfo
	tokenListAt time.Time
}

// NewReporter creates a Reporter covering the given chains. solana, base
// and pricer may be nil for chains that are not enabled.
func NewReporter(ledger domain.HoldingsLedger, chains []domain.Chain, solana SolanaMetadata, base BaseMetadata, pricer BasePricer, baseAddr string, logger *slog.Logger) *Reporter {
	return &Reporter{
		ledger:   ledger,
		chains:   chains,
		solana:   solana,
		base:     base,
		pricer:   pricer,
		baseAddr: baseAddr,
		logger:   logger.With(slog.String("component", "holdings_reporter")),
	}
}

// Report renders all holdings across the enabled chains. Metadata lookups
// are best-effort; a position always appears even when its name cannot be
// resolved.
func (r *Reporter) Report(ctx context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("*Current Holdings*\n")

	total := 0
	for _, chain := range r.chains {
		positions, err := r.ledger.All(ctx, chain)
		if err != nil {
			return "", fmt.Errorf("holdings: read %s ledger: %w", chain, err)
		}

		tokens := make([]string, 0, len(positions))
		for token := range positions {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)

		b.WriteString(fmt.Sprintf("\n*%s* (%d)\n", strings.ToUpper(string(chain)), len(tokens)))
		if len(tokens) == 0 {
			b.WriteString("_none_\n")
			continue
		}

		for _, token := range tokens {
			line := r.describe(ctx, chain, token, positions[token])
			if line == "" {
				continue
			}
			b.WriteString(line)
			total++
		}
	}

	if total == 0 {
		return "*Current Holdings*\nNo positions tracked on any chain.", nil
	}
	return b.String(), nil
}

// describe renders one position. For Base it also reconciles against the
// live balance: a position sold outside the bot is dropped from the ledger
// and omitted from the report, and what remains is valued in USDC through
// the 0x price endpoint.
func (r *Reporter) describe(ctx context.Context, chain domain.Chain, token, amount string) string {
	switch chain {
	case domain.ChainSolana:
		if info, ok := r.lookupSolana(ctx, token); ok {
			return fmt.Sprintf("• *%s* (%s)%s\n  `%s`\n", info.Symbol, info.Name, amountSuffix(amount), token)
		}
	case domain.ChainBase:
		if r.base != nil {
			balance, err := r.base.TokenBalance(ctx, token, r.baseAddr)
			if err == nil && balance.Sign() == 0 {
				r.logger.Info("dropping liquidated position", slog.String("token", token))
				if err := r.ledger.Remove(ctx, chain, token); err != nil {
					r.logger.Error("ledger remove failed",
						slog.String("token", token),
						slog.Any("error", err),
					)
				}
				return ""
			}
			if err != nil {
				balance = nil
			}

			line := fmt.Sprintf("• `%s`\n", token)
			if symbol, name := r.base.TokenMetadata(ctx, token); symbol != "" {
				line = fmt.Sprintf("• *%s* (%s)\n  `%s`\n", symbol, name, token)
			}
			if usd, ok := r.valueInUSDC(ctx, token, balance); ok {
				line += fmt.Sprintf("  ~$%s\n", usd)
			}
			return line
		}
	}
	return fmt.Sprintf("• `%s`%s\n", token, amountSuffix(amount))
}

// amountSuffix renders the recorded base-unit amount, when the ledger has
// one.
func amountSuffix(amount string) string {
	if amount == "" {
		return ""
	}
	return fmt.Sprintf(" - %s", amount)
}

// valueInUSDC prices the live balance into USDC base units via 0x and
// formats it as dollars. Best-effort: any failure just omits the value.
func (r *Reporter) valueInUSDC(ctx context.Context, token string, balance *big.Int) (string, bool) {
	if r.pricer == nil || balance == nil || balance.Sign() <= 0 {
		return "", false
	}
	price, err := r.pricer.GetPrice(ctx, zerox.PriceRequest{
		ChainID:    basechain.ChainID,
		SellToken:  token,
		BuyToken:   baseUSDC,
		SellAmount: balance.String(),
		Taker:      r.baseAddr,
	})
	if err != nil {
		r.logger.Warn("price lookup failed",
			slog.String("token", token),
			slog.Any("error", err),
		)
		return "", false
	}
	return formatUSDC(price.BuyAmount)
}

// formatUSDC converts USDC base units (6 decimals) to a dollar string with
// cents.
func formatUSDC(buyAmount string) (string, bool) {
	raw, ok := new(big.Int).SetString(buyAmount, 10)
	if !ok || raw.Sign() < 0 {
		return "", false
	}
	cents := new(big.Int).Quo(raw, big.NewInt(10_000))
	dollars, rem := new(big.Int).QuoRem(cents, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s.%02d", dollars, rem.Int64()), true
}

// lookupSolana resolves a mint through the cached Jupiter token list.
func (r *Reporter) lookupSolana(ctx context.Context, mint string) (jupiter.TokenInfo, bool) {
	if r.solana == nil {
		return jupiter.TokenInfo{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tokenByMint == nil || time.Since(r.tokenListAt) > tokenListTTL {
		list, err := r.solana.TokenList(ctx, false)
		if err != nil {
			r.logger.Warn("token list fetch failed", slog.Any("error", err))
		} else {
			byMint := make(map[string]jupiter.TokenInfo, len(list))
			for _, t := range list {
				byMint[t.Address] = t
			}
			r.tokenByMint = byMint
			r.tokenListAt = time.Now()
		}
	}

	info, ok := r.tokenByMint[mint]
	return info, ok
}
