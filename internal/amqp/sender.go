package amqp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finanzas/internal/format"
)

// MaxDocumentSize bounds exported files sent through the broker.
const MaxDocumentSize = 20 << 20

type replyPublisher interface {
	PublishReply(ctx context.Context, msg *ReplyMessage, botID string) error
}

// ReplySender delivers bot replies by queueing them for the chat gateway.
type ReplySender struct {
	client replyPublisher
	botID  string
}

func NewReplySender(client *Client, botID string) *ReplySender {
	return &ReplySender{client: client, botID: botID}
}

func (s *ReplySender) SendText(ctx context.Context, chatID int64, reply format.Reply) error {
	return s.client.PublishReply(ctx, &ReplyMessage{
		ChatID:    chatID,
		Text:      reply.Text,
		ParseMode: reply.Mode.ParseMode(),
		Timestamp: time.Now(),
	}, s.botID)
}

// SendDocument reads the file at path and ships its bytes inline, so the
// file may be removed as soon as this returns.
func (s *ReplySender) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return fmt.Errorf("document %s is %d bytes, limit is %d", info.Name(), info.Size(), MaxDocumentSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	return s.client.PublishReply(ctx, &ReplyMessage{
		ChatID: chatID,
		Document: &Document{
			FileName: filepath.Base(path),
			Caption:  caption,
			Content:  content,
		},
		Timestamp: time.Now(),
	}, s.botID)
}
