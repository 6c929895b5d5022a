package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsReadTimeout      = 90 * time.Second
	wsPingInterval     = 30 * time.Second
	wsReconnectMin     = 1 * time.Second
	wsReconnectMax     = 30 * time.Second
)

// LogsWatcher maintains a logsSubscribe subscription (mentions filter) per
// watched address over one WebSocket connection. On transport failure the
// connection is re-dialed and every subscription re-established; events that
// occurred during the outage are not replayed.
type LogsWatcher struct {
	endpoint  string
	addresses []string
	logger    *slog.Logger
}

// NewLogsWatcher creates a watcher for the given WS endpoint and addresses.
func NewLogsWatcher(endpoint string, addresses []string, logger *slog.Logger) *LogsWatcher {
	return &LogsWatcher{
		endpoint:  endpoint,
		addresses: addresses,
		logger:    logger.With(slog.String("component", "solana_ws")),
	}
}

// Run blocks until ctx is cancelled, invoking handle for every log
// notification. Reconnects use doubling backoff capped at 30s, reset after a
// healthy connection.
func (w *LogsWatcher) Run(ctx context.Context, handle func(LogsNotification)) error {
	delay := wsReconnectMin
	for {
		start := time.Now()
		err := w.runConnection(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(start) > time.Minute {
			delay = wsReconnectMin
		}
		w.logger.Warn("connection lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > wsReconnectMax {
			delay = wsReconnectMax
		}
	}
}

func (w *LogsWatcher) runConnection(ctx context.Context, handle func(LogsNotification)) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("solana: ws dial: %w", err)
	}
	defer conn.Close()

	// Subscribe each address; request ID doubles as the index into addresses.
	reqToAddr := make(map[uint64]string, len(w.addresses))
	for i, addr := range w.addresses {
		id := uint64(i + 1)
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "logsSubscribe",
			Params: []any{
				map[string]any{"mentions": []string{addr}},
				map[string]string{"commitment": "confirmed"},
			},
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("solana: ws subscribe %s: %w", addr, err)
		}
		reqToAddr[id] = addr
	}

	// Close the connection when ctx ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Keepalive pings; the read deadline below detects a dead peer.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	subToAddr := make(map[int64]string, len(w.addresses))
	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("solana: ws read: %w", err)
		}

		var msg struct {
			ID     uint64          `json:"id"`
			Result json.RawMessage `json:"result"`
			Method string          `json:"method"`
			Params *struct {
				Subscription int64 `json:"subscription"`
				Result       struct {
					Value struct {
						Signature string `json:"signature"`
						Err       any    `json:"err"`
					} `json:"value"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			w.logger.Debug("unparseable ws message", slog.String("error", err.Error()))
			continue
		}

		switch {
		case msg.ID != 0:
			// Subscription confirmation: result is the subscription ID.
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err == nil {
				subToAddr[subID] = reqToAddr[msg.ID]
				w.logger.Info("subscribed to wallet logs",
					slog.String("address", reqToAddr[msg.ID]))
			}

		case msg.Method == "logsNotification" && msg.Params != nil:
			handle(LogsNotification{
				Signature: msg.Params.Result.Value.Signature,
				Err:       msg.Params.Result.Value.Err,
				Address:   subToAddr[msg.Params.Subscription],
			})
		}
	}
}
