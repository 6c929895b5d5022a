package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, chain, token, source_wallet, source_tx_id, status,
	skip_reason, error, tx_id, amount_in, amount_out, attempts,
	started_at, completed_at`

func scanTradeRows(rows pgx.Rows) ([]domain.CopyTrade, error) {
	var trades []domain.CopyTrade
	for rows.Next() {
		var t domain.CopyTrade
		var skipReason, errMsg, txID, amountOut *string
		if err := rows.Scan(
			&t.ID, &t.Chain, &t.Token, &t.SourceWallet, &t.SourceTxID,
			&t.Status, &skipReason, &errMsg, &txID, &t.AmountIn,
			&amountOut, &t.Attempts, &t.StartedAt, &t.CompletedAt,
		); err != nil {
			return nil, err
		}
		if skipReason != nil {
			t.SkipReason = domain.SkipReason(*skipReason)
		}
		if errMsg != nil {
			t.Error = *errMsg
		}
		if txID != nil {
			t.TxID = *txID
		}
		if amountOut != nil {
			t.AmountOut = *amountOut
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records one terminal copy-trade outcome. Re-inserting the same ID
// is a no-op so retried writes stay idempotent.
func (s *TradeStore) Insert(ctx context.Context, t domain.CopyTrade) error {
	const query = `
		INSERT INTO copy_trades (
			id, chain, token, source_wallet, source_tx_id, status,
			skip_reason, error, tx_id, amount_in, amount_out, attempts,
			started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Chain, t.Token, t.SourceWallet, t.SourceTxID, t.Status,
		nullable(string(t.SkipReason)), nullable(t.Error), nullable(t.TxID),
		t.AmountIn, nullable(t.AmountOut), t.Attempts,
		t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert copy trade %s: %w", t.ID, err)
	}
	return nil
}

// ListRecent returns the most recently completed trades for a chain, newest
// first.
func (s *TradeStore) ListRecent(ctx context.Context, chain domain.Chain, limit int) ([]domain.CopyTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + tradeSelectCols + ` FROM copy_trades
		WHERE chain = $1 ORDER BY completed_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, chain, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent copy trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan copy trades: %w", err)
	}
	return trades, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
