// Package notify delivers budget alerts.
package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/postwright/postwright/pkg/budget"
	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

// Log writes alerts to the logger.
type Log struct {
	log *logger.Logger
}

// NewLog creates a Log notifier.
func NewLog(l *logger.Logger) *Log {
	return &Log{log: l}
}

// Notify implements budget.Notifier.
func (n *Log) Notify(_ context.Context, a budget.Alert) error {
	if a.Level == models.HealthCritical {
		n.log.Errorw(a.Text(), "month", a.Month, "spent", a.Spent.StringFixed(2))
	} else {
		n.log.Warnw(a.Text(), "month", a.Month, "spent", a.Spent.StringFixed(2))
	}
	return nil
}

// Telegram sends alerts to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects to the Bot API. endpoint may be empty for the public
// API.
func NewTelegram(token string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify implements budget.Notifier.
func (n *Telegram) Notify(_ context.Context, a budget.Alert) error {
	icon := "⚠️"
	if a.Level == models.HealthCritical {
		icon = "🚨"
	}
	msg := tgbotapi.NewMessage(n.chatID, icon+" "+a.Text())
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Multi fans an alert out to several notifiers and joins their errors.
type Multi []budget.Notifier

// Notify implements budget.Notifier.
func (m Multi) Notify(ctx context.Context, a budget.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
