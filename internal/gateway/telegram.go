package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramGateway delivers summaries through the Telegram Bot API via
// telebot. The bot is send-only here: no poller is attached, commands
// and subscription management live in the separate bot layer.
type TelegramGateway struct {
	bot *tele.Bot
}

func NewTelegram(token string, timeout time.Duration) (*TelegramGateway, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramGateway{bot: bot}, nil
}

// Send delivers text to the chat and returns Telegram's message ID.
// The call is bounded by the HTTP client timeout; ctx is checked up
// front because telebot does not thread contexts through API calls.
func (g *TelegramGateway) Send(ctx context.Context, chatID int64, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransientError{Err: err}
	}

	msg, err := g.bot.Send(tele.ChatID(chatID), text, tele.NoPreview)
	if err != nil {
		return "", classify(err)
	}
	return strconv.Itoa(msg.ID), nil
}

// classify maps telebot API errors onto the gateway taxonomy.
// Flood control carries Telegram's retry_after hint; any other 4xx means
// the chat is gone for good (blocked, deactivated, chat not found).
// Everything else (server errors, transport faults) is retryable.
func classify(err error) error {
	if flood, ok := err.(tele.FloodError); ok {
		return &TransientError{
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	if apiErr, ok := err.(*tele.Error); ok {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &TransientError{Err: err}
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return &PermanentError{Reason: apiErr.Description, Err: err}
		}
	}
	return &TransientError{Err: err}
}

var _ Gateway = (*TelegramGateway)(nil)
