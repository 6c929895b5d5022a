package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// pollTimeout is the Telegram long-poll window per getUpdates call.
const pollTimeout = 30 * time.Second

// CommandHandler produces the reply body for one operator command. The
// returned string is sent back as Markdown.
type CommandHandler func(ctx context.Context) (string, error)

// CommandPoller long-polls the Telegram getUpdates API and dispatches
// recognized commands (e.g. "/holdings") from the configured chat to their
// handlers. Messages from any other chat are ignored.
type CommandPoller struct {
	token    string
	chatID   string
	handlers map[string]CommandHandler
	sender   *TelegramSender
	client   *http.Client
	logger   *slog.Logger
}

// NewCommandPoller creates a poller for the given bot token and chat ID.
func NewCommandPoller(token, chatID string, logger *slog.Logger) *CommandPoller {
	return &CommandPoller{
		token:    token,
		chatID:   chatID,
		handlers: make(map[string]CommandHandler),
		sender:   NewTelegramSender(token, chatID),
		client:   &http.Client{Timeout: pollTimeout + 10*time.Second},
		logger:   logger.With(slog.String("component", "command_poller")),
	}
}

// Handle registers a handler for a command such as "/holdings".
func (p *CommandPoller) Handle(command string, h CommandHandler) {
	p.handlers[command] = h
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Run polls until ctx is cancelled. Transport errors back off and retry;
// the poller never returns an error other than ctx.Err().
func (p *CommandPoller) Run(ctx context.Context) error {
	p.logger.Info("command poller starting", slog.Int("commands", len(p.handlers)))

	var offset int64
	for {
		updates, err := p.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("getUpdates failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatch(ctx, u)
		}
	}
}

func (p *CommandPoller) dispatch(ctx context.Context, u telegramUpdate) {
	if u.Message == nil {
		return
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != p.chatID {
		return
	}

	// "/holdings@botname arg" still dispatches on "/holdings".
	command := strings.Fields(u.Message.Text)
	if len(command) == 0 {
		return
	}
	name, _, _ := strings.Cut(command[0], "@")

	handler, ok := p.handlers[name]
	if !ok {
		return
	}
	p.logger.Info("command received", slog.String("command", name))

	reply, err := handler(ctx)
	if err != nil {
		p.logger.Error("command handler failed",
			slog.String("command", name),
			slog.Any("error", err),
		)
		reply = fmt.Sprintf("Failed to handle %s: %v", name, err)
	}
	if err := p.sender.Send(ctx, "", reply); err != nil {
		p.logger.Error("command reply failed",
			slog.String("command", name),
			slog.Any("error", err),
		)
	}
}

func (p *CommandPoller) getUpdates(ctx context.Context, offset int64) ([]telegramUpdate, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(pollTimeout.Seconds())))
	q.Set("allowed_updates", `["message"]`)
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?%s", p.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(body[:min(len(body), 256)]))
	}

	var out struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("telegram: decode response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram: getUpdates not ok")
	}
	return out.Result, nil
}
