package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// InboundHandler receives one customer message from a channel bridge.
// reply answers on the channel the message came from.
type InboundHandler func(ctx context.Context, msg entities.InboundMessage, reply interfaces.Messenger)

// TelegramClient sends replies through one tenant's bot.
type TelegramClient struct {
	Bot *tgbotapi.BotAPI
}

func NewTelegramClient(bot *tgbotapi.BotAPI) *TelegramClient {
	return &TelegramClient{Bot: bot}
}

func (t *TelegramClient) SendMessage(to, content string) error {
	if t.Bot == nil {
		return fmt.Errorf("telegram bot not connected")
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	msg := tgbotapi.NewMessage(chatID, content)
	_, err = t.Bot.Send(msg)
	return err
}

// SendMessageWithMenu sends message with inline keyboard menu
func (t *TelegramClient) SendMessageWithMenu(to, content string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	if t.Bot == nil {
		return fmt.Errorf("telegram bot not connected")
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	msg := tgbotapi.NewMessage(chatID, content)
	msg.ReplyMarkup = keyboard
	_, err = t.Bot.Send(msg)
	return err
}
