// Package messenger defines outbound chat messages and the transports that
// deliver them.
package messenger

import (
	"context"
	"fmt"
)

// Kind tells text messages from photo messages.
type Kind string

const (
	KindText  Kind = "text"
	KindPhoto Kind = "photo"
)

// Format is a rendering hint for message text.
type Format string

const (
	FormatPlain    Format = ""
	FormatMarkdown Format = "markdown"
)

// Message is one outbound message. Photo messages carry their text as caption.
type Message struct {
	Kind   Kind   `json:"type"`
	Text   string `json:"text"`
	Image  Image  `json:"image,omitempty"`
	Format Format `json:"format,omitempty"`
}

// Text builds a text message.
func Text(text string, format Format) Message {
	return Message{Kind: KindText, Text: text, Format: format}
}

// Photo builds a photo message with a Markdown caption.
func Photo(image Image, caption string) Message {
	return Message{Kind: KindPhoto, Image: image, Text: caption, Format: FormatMarkdown}
}

// Messenger delivers messages to one user of a chat transport.
type Messenger interface {
	SendText(ctx context.Context, userID, text string, format Format) error
	SendPhoto(ctx context.Context, userID string, image Image, caption string) error
}

// Deliver sends msgs in order and stops at the first failure.
func Deliver(ctx context.Context, m Messenger, userID string, msgs []Message) error {
	for i, msg := range msgs {
		var err error
		switch msg.Kind {
		case KindPhoto:
			err = m.SendPhoto(ctx, userID, msg.Image, msg.Text)
		default:
			err = m.SendText(ctx, userID, msg.Text, msg.Format)
		}
		if err != nil {
			return fmt.Errorf("deliver message %d/%d: %w", i+1, len(msgs), err)
		}
	}
	return nil
}
