package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/secrets"
)

type Telegram struct {
	bot *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// SenderFromSecrets returns a Telegram sender when a token is stored in the
// keyring or environment, and Nop otherwise.
func SenderFromSecrets(logger arbor.ILogger) Sender {
	token, err := secrets.TelegramToken()
	if err != nil {
		logger.Debug().Msg("telegram token not configured; notifications disabled")
		return Nop{}
	}
	t, err := NewTelegram(token)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram unavailable; notifications disabled")
		return Nop{}
	}
	return t
}
