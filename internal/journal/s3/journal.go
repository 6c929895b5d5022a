package s3journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

// Journal writes one JSON object per terminal trade, keyed by chain, date
// and trade ID so a prefix listing reads like a daily log.
type Journal struct {
	writer domain.BlobWriter
	prefix string
}

// NewJournal creates a Journal writing under the given key prefix
// (e.g. "trades").
func NewJournal(writer domain.BlobWriter, prefix string) *Journal {
	if prefix == "" {
		prefix = "trades"
	}
	return &Journal{writer: writer, prefix: prefix}
}

// Record uploads the trade. Implements the executor's Journal interface.
func (j *Journal) Record(ctx context.Context, trade domain.CopyTrade) error {
	data, err := json.MarshalIndent(trade, "", "  ")
	if err != nil {
		return fmt.Errorf("s3journal: marshal trade %s: %w", trade.ID, err)
	}
	key := fmt.Sprintf("%s/%s/%s/%s.json",
		j.prefix, trade.Chain, trade.CompletedAt.UTC().Format("2006-01-02"), trade.ID)
	return j.writer.Put(ctx, key, data, "application/json")
}
