// Package notify sends reports about publishing runs to chats.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

//go:generate moq -out mock_sender.go . Sender

// Sender is interface for telegram bot API client with the possibility to mock it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to telegram chats.
type Telegram struct {
	log     *slog.Logger
	api     Sender
	chatIDs []int64
}

// NewTelegram returns a new telegram notifier.
func NewTelegram(lg *slog.Logger, token string, chatIDs []string) (*Telegram, error) {
	ids, err := parseChatIDs(chatIDs)
	if err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("make new api: %w", err)
	}

	stdlibLogger := slog.NewLogLogger(lg.Handler(), slog.LevelWarn)
	stdlibLogger.SetPrefix("telegram-bot-api: ")

	if err = tgbotapi.SetLogger(stdlibLogger); err != nil {
		return nil, fmt.Errorf("set logger: %w", err)
	}

	return &Telegram{log: lg, api: api, chatIDs: ids}, nil
}

// Notify sends the text to every chat.
// A failed chat doesn't stop sending to the rest.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, id := range t.chatIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true

		if _, err := t.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send message to %d: %w", id, err))
			continue
		}

		t.log.DebugCtx(ctx, "notification sent", slog.Int64("chat_id", id))
	}

	return errors.Join(errs...)
}

func parseChatIDs(chatIDs []string) ([]int64, error) {
	ids := make([]int64, 0, len(chatIDs))
	for _, s := range chatIDs {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chat id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
