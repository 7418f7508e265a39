package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tensionmonitor/internal/ports"
)

// Notifier sends alert messages through the Telegram bot API using
// MarkdownV2 parse mode.
type Notifier struct {
	bot *tgbotapi.BotAPI
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier wraps an authorized bot instance.
func NewNotifier(bot *tgbotapi.BotAPI) *Notifier {
	return &Notifier{bot: bot}
}

// Send posts pre-escaped MarkdownV2 text to the chat. The context deadline is
// advisory only; the bot API client owns its own HTTP timeout.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) error {
	if n.bot == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// replacer escapes every character MarkdownV2 reserves.
var replacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// Escape sanitizes arbitrary text for MarkdownV2.
func Escape(src string) string {
	return replacer.Replace(src)
}
