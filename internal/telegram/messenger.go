package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

// Sender is the part of *tgbotapi.BotAPI that delivers messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Messenger delivers game messages to Telegram chats. Recipients are chat IDs
// in decimal. Markdown that Telegram refuses to parse is resent as plain text.
type Messenger struct {
	bot    Sender
	images messenger.ImageSet
}

// NewMessenger creates a Telegram messenger reading portraits from images.
func NewMessenger(bot Sender, images messenger.ImageSet) *Messenger {
	return &Messenger{bot: bot, images: images}
}

// SendText implements messenger.Messenger.
func (m *Messenger) SendText(ctx context.Context, userID, text string, format messenger.Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := chatIDFromUser(userID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if format == messenger.FormatMarkdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err = m.bot.Send(msg)
	if err != nil && msg.ParseMode != "" && isEntityError(err) {
		msg.ParseMode = ""
		_, err = m.bot.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto implements messenger.Messenger. Captions are Markdown.
func (m *Messenger) SendPhoto(ctx context.Context, userID string, image messenger.Image, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := chatIDFromUser(userID)
	if err != nil {
		return err
	}
	path, err := m.images.Path(image)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	_, err = m.bot.Send(photo)
	if err != nil && isEntityError(err) {
		photo.ParseMode = ""
		_, err = m.bot.Send(photo)
	}
	if err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}

// isEntityError reports whether Telegram rejected a message because its
// Markdown did not parse, e.g. an unpaired '_' in a coin name.
func isEntityError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}

func chatIDFromUser(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}
	return id, nil
}

var _ messenger.Messenger = (*Messenger)(nil)
