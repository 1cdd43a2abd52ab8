package telegram

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Bot struct {
	api *tgbotapi.BotAPI
	h   *Handlers
	log logrus.FieldLogger
}

func NewBot(token, webhookURL string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	// set webhook
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	h := NewHandlers(api, deps)
	h.log.Infof("telegram: webhook set to %s", webhookURL)

	return &Bot{api: api, h: h, log: h.log}, nil
}

// Webhook HTTP handler (registered at /telegram/webhook)
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if update.Message != nil {
		b.log.WithField("chat_id", update.Message.Chat.ID).Debugf("webhook: text=%q", update.Message.Text)
		go b.h.HandleMessage(update.Message)
	} else {
		b.log.Debug("webhook: non-message update received")
	}
	w.WriteHeader(http.StatusOK)
}
