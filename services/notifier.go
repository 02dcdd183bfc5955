package services

import (
	"fmt"
	"log"

	"prize-hub/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/telebot.v3"
)

// Notifier receives short human-readable notices about payout changes. Implementations must
// not block the caller.
type Notifier interface {
	Notify(text string)
}

// NopNotifier drops every notice.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// TelegramNotifier posts notices to one admin chat.
type TelegramNotifier struct {
	bot  *telebot.Bot
	chat *telebot.Chat
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	// Offline skips the getMe round trip; the bot only sends.
	b, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chat: &telebot.Chat{ID: chatID}}, nil
}

func (t *TelegramNotifier) Notify(text string) {
	go func() {
		if _, err := t.bot.Send(t.chat, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
			log.Printf("[NOTIFY] ⚠️ telegram send failed: %v", err)
		}
	}()
}

// FormatAmount renders a prize amount as "$5,000.00".
func FormatAmount(d decimal.Decimal) string {
	return message.NewPrinter(language.English).Sprintf("$%.2f", d.Round(2).InexactFloat64())
}

func winnerNotice(event models.WinnerEvent, title string, w *models.Winner) string {
	if title == "" {
		title = w.CompetitionID
	}
	who := w.Username
	if who == "" {
		who = w.WalletAddress
	}
	return fmt.Sprintf("🏆 %s: place %d %s (%s) -> %s, %s", title, w.Place, who, event, w.PaymentStatus, FormatAmount(w.Amount))
}
