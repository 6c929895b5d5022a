package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	titles []string
}

func (s *recordingSender) Send(ctx context.Context, title, message string) error {
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return "recording" }

func TestNotify_EventFilter(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, []string{"trade_success", "startup"}, slog.Default())

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, "startup", "Monitor Started", "watching"))
	require.NoError(t, n.Notify(ctx, "trade_success", "Trade Executed", "bought"))
	require.NoError(t, n.Notify(ctx, "trade_skip", "Trade Skipped", "muted"))

	assert.Equal(t, []string{"Monitor Started", "Trade Executed"}, sender.titles)
}

func TestNotify_EmptyEventListAllowsAll(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, nil, slog.Default())

	require.NoError(t, n.Notify(context.Background(), "anything", "T", "m"))
	assert.Equal(t, []string{"T"}, sender.titles)
}
