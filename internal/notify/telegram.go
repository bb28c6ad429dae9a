// Package notify forwards audit events to the admins' Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type TelegramForwarder struct {
	bot    *bot.Bot
	chatID int64
	logger *zap.Logger
}

// NewTelegramForwarder creates a send-only bot client. It does not poll for updates.
func NewTelegramForwarder(token string, chatID int64, logger *zap.Logger, opts ...bot.Option) (*TelegramForwarder, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramForwarder{
		bot:    b,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (f *TelegramForwarder) Forward(ctx context.Context, entry *model.AuditEntry) error {
	_, err := f.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    f.chatID,
		Text:      formatEntry(entry),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send audit message: %w", err)
	}

	f.logger.Debug("Audit entry forwarded", zap.String("action", entry.Action))
	return nil
}

func formatEntry(entry *model.AuditEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(entry.Action))
	if entry.ActorEmail != "" {
		fmt.Fprintf(&sb, "by %s (%s)\n", html.EscapeString(entry.ActorEmail), entry.ActorRole)
	}

	keys := make([]string, 0, len(entry.Details))
	for k := range entry.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", html.EscapeString(k), html.EscapeString(fmt.Sprint(entry.Details[k])))
	}

	return strings.TrimRight(sb.String(), "\n")
}
