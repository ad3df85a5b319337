package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"msggate/pkg/bus"
	"msggate/pkg/channel"
	"msggate/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram updates into bus messages and delivers responses.
type Adapter struct {
	cfg config.TelegramConfig
	log *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg: cfg,
		log: log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus messages and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards messages and channel posts
// through the shared channel handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := toMessage(update)
			if !ok {
				continue
			}
			a.log.Info("Received message",
				"update_id", update.UpdateID,
				"chat_id", inbound.Chat.ID,
				"chat_type", inbound.Chat.Type,
				"message_id", inbound.ID,
				"content", previewText(inbound.Body()),
			)

			resp, err := handler(ctx, inbound)
			if err != nil {
				a.log.Error("Failed to process inbound message", "chat_id", inbound.Chat.ID, "message_id", inbound.ID, "error", err)
				continue
			}
			if resp == nil || strings.TrimSpace(resp.Text) == "" {
				continue
			}
			a.log.Info("Sending message", "chat_id", resp.ChatID, "content", previewText(resp.Text))

			if _, err := bot.SendMessage(ctx, sendParams(resp)); err != nil {
				a.log.Error("Failed to send telegram message", "chat_id", resp.ChatID, "error", err)
			}
		}
	}
}

// toMessage converts a Telegram update into a bus message. Updates that are
// neither a message nor a channel post are skipped.
func toMessage(update telego.Update) (bus.Message, bool) {
	message := update.Message
	if message == nil {
		message = update.ChannelPost
	}
	if message == nil {
		return bus.Message{}, false
	}

	inbound := bus.Message{
		Channel:  channelName,
		ID:       int64(message.MessageID),
		Chat:     bus.Chat{ID: message.Chat.ID, Type: bus.ParseChatType(message.Chat.Type)},
		Text:     message.Text,
		Caption:  message.Caption,
		HasPhoto: len(message.Photo) > 0,
		Kind:     messageKind(message),
	}
	if message.IsTopicMessage {
		inbound.Chat.ThreadID = message.MessageThreadID
	}
	if message.From != nil {
		inbound.SenderID = message.From.ID
	}
	if raw, err := json.Marshal(message); err == nil {
		inbound.Raw = raw
	}

	return inbound, true
}

// messageKind names the payload type of a message for logs.
func messageKind(message *telego.Message) string {
	switch {
	case len(message.Photo) > 0:
		return "photo"
	case message.Text != "":
		return "text"
	case message.Sticker != nil:
		return "sticker"
	case message.Voice != nil:
		return "voice"
	case message.Audio != nil:
		return "audio"
	case message.Video != nil:
		return "video"
	case message.VideoNote != nil:
		return "video_note"
	case message.Animation != nil:
		return "animation"
	case message.Document != nil:
		return "document"
	case message.Location != nil:
		return "location"
	case message.Contact != nil:
		return "contact"
	case message.Poll != nil:
		return "poll"
	default:
		return "other"
	}
}

// sendParams builds the outgoing message for resp, threaded and replying to
// the triggering message when those are known.
func sendParams(resp *bus.Response) *telego.SendMessageParams {
	params := tu.Message(tu.ID(resp.ChatID), resp.Text)
	if resp.ThreadID != 0 {
		params.MessageThreadID = resp.ThreadID
	}
	if resp.ReplyToMessageID != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                int(resp.ReplyToMessageID),
			AllowSendingWithoutReply: true,
		}
	}
	return params
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
