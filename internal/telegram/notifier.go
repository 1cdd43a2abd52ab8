package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier posts signal messages to one chat.
type Notifier struct {
	api    sender
	chatID int64
}

func NewNotifier(api sender, chatID int64) *Notifier {
	return &Notifier{api: api, chatID: chatID}
}

// NewNotifierFromToken logs in with token without touching the webhook.
func NewNotifierFromToken(token string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return NewNotifier(api, chatID), nil
}

func (n *Notifier) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
