package bot

import (
	"fmt"
	"html"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Truenya/caldav-daemon/internal/domain"
)

// Bot delivers event notifications to one Telegram chat
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func New(token string, chatID int64) (*Bot, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, chatID)
}

// NewWithEndpoint creates a bot against a custom Bot API endpoint
// (format "https://host/bot%s/%s").
func NewWithEndpoint(token, endpoint string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	return &Bot{
		api:    api,
		chatID: chatID,
	}, nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// Notify sends the event notification to the configured chat
func (b *Bot) Notify(e *domain.CalendarEvent) error {
	if err := b.SendMessage(b.chatID, FormatNotification(e)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// FormatNotification renders an event as an HTML Telegram message
func FormatNotification(e *domain.CalendarEvent) string {
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s", html.EscapeString(e.Summary), e.FormatDateTime())
	if e.Calendar != "" {
		text += fmt.Sprintf(" · %s", html.EscapeString(e.Calendar))
	}
	if e.Description != "" {
		text += "\n\n" + html.EscapeString(e.Description)
	}
	return text
}

// LogSender writes notifications to the log. It is used when no Telegram
// token is configured.
type LogSender struct{}

func (LogSender) Notify(e *domain.CalendarEvent) error {
	log.Printf("Event: %s at %s (%s)", e.Summary, e.FormatDateTime(), e.Calendar)
	return nil
}
