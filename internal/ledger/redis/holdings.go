package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// HoldingsLedger implements domain.HoldingsLedger using one Redis hash per
// chain ("holdings:{chain}", field = token address, value = amount in base
// units or empty when unknown). HSET and HDEL are idempotent, which gives the
// ledger its idempotent add/remove contract for free.
type HoldingsLedger struct {
	rdb *redis.Client
}

// NewHoldingsLedger creates a HoldingsLedger backed by the given Client.
func NewHoldingsLedger(c *Client) *HoldingsLedger {
	return &HoldingsLedger{rdb: c.Underlying()}
}

func holdingsKey(chain domain.Chain) string {
	return "holdings:" + string(chain)
}

// Add records that the operator holds token on chain. Re-adding an existing
// holding only refreshes its amount.
func (l *HoldingsLedger) Add(ctx context.Context, chain domain.Chain, token, amount string) error {
	if err := l.rdb.HSet(ctx, holdingsKey(chain), token, amount).Err(); err != nil {
		return fmt.Errorf("redis: add holding %s/%s: %w", chain, token, err)
	}
	return nil
}

// Remove deletes the holding. Removing an absent token is a no-op.
func (l *HoldingsLedger) Remove(ctx context.Context, chain domain.Chain, token string) error {
	if err := l.rdb.HDel(ctx, holdingsKey(chain), token).Err(); err != nil {
		return fmt.Errorf("redis: remove holding %s/%s: %w", chain, token, err)
	}
	return nil
}

// Has reports whether the operator holds token on chain.
func (l *HoldingsLedger) Has(ctx context.Context, chain domain.Chain, token string) (bool, error) {
	ok, err := l.rdb.HExists(ctx, holdingsKey(chain), token).Result()
	if err != nil {
		return false, fmt.Errorf("redis: has holding %s/%s: %w", chain, token, err)
	}
	return ok, nil
}

// All returns every held token on chain mapped to its recorded amount.
func (l *HoldingsLedger) All(ctx context.Context, chain domain.Chain) (map[string]string, error) {
	out, err := l.rdb.HGetAll(ctx, holdingsKey(chain)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list holdings %s: %w", chain, err)
	}
	return out, nil
}

// Clear drops every holding for chain. Used by the backfill command before a
// fresh scan.
func (l *HoldingsLedger) Clear(ctx context.Context, chain domain.Chain) error {
	if err := l.rdb.Del(ctx, holdingsKey(chain)).Err(); err != nil {
		return fmt.Errorf("redis: clear holdings %s: %w", chain, err)
	}
	return nil
}
