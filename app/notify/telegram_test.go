package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestTelegram_Notify(t *testing.T) {
	api := &SenderMock{
		SendFunc: func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
			msg, ok := c.(tgbotapi.MessageConfig)
			require.True(t, ok)
			if msg.ChatID == 2 {
				return tgbotapi.Message{}, errors.New("chat not found")
			}
			return tgbotapi.Message{MessageID: 1}, nil
		},
	}

	tg := &Telegram{log: slog.Default(), api: api, chatIDs: []int64{1, 2, 3}}

	err := tg.Notify(context.Background(), "site published: 2 articles, 2 pages")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send message to 2: chat not found")

	calls := api.SendCalls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		msg := call.C.(tgbotapi.MessageConfig)
		assert.Equal(t, int64(i+1), msg.ChatID)
		assert.Equal(t, "site published: 2 articles, 2 pages", msg.Text)
		assert.True(t, msg.DisableWebPagePreview)
	}
}

func TestTelegram_Notify_ContextCanceled(t *testing.T) {
	api := &SenderMock{SendFunc: func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		return tgbotapi.Message{}, nil
	}}

	tg := &Telegram{log: slog.Default(), api: api, chatIDs: []int64{1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tg.Notify(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.SendCalls())
}

func TestParseChatIDs(t *testing.T) {
	ids, err := parseChatIDs([]string{"1", "-100200300"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, -100200300}, ids)

	_, err = parseChatIDs([]string{"@channel"})
	assert.Error(t, err)
}
