package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mtzanidakis/concilium/internal/pipeline"
)

const maxMessageLen = 4096

type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Notifier delivers each task's final synthesis to a fixed set of chats.
type Notifier struct {
	bot   sender
	chats []int64
}

func NewNotifier(token string, chatIDs []int64) (*Notifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chats: chatIDs}, nil
}

func (n *Notifier) NotifyFinal(ctx context.Context, task pipeline.Task, text string) error {
	body := task.OutputFile + "\n\n" + text
	for _, chatID := range n.chats {
		if err := n.send(ctx, chatID, body); err != nil {
			return err
		}
		slog.Debug("final output sent", "chat", chatID, "output_file", task.OutputFile)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range chunkMessage(text, maxMessageLen) {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}
	return nil
}
