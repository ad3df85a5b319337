package bus

import "strings"

const (
	historyKeyPrefix = "history:"
	dedupKeyPrefix   = "last_message_id:"
)

// ChatContext holds read-only facts derived from one inbound message. It
// lives for a single pipeline invocation and is never persisted.
type ChatContext struct {
	ChatType ChatType
	ChatID   string
	// DedupKey stores the chat's recent message id window.
	DedupKey string
	// HistoryKey scopes per-conversation state (thread aware).
	HistoryKey string

	channel  string
	chatID   int64
	threadID int
	replyTo  int64
}

// NewChatContext derives the per-request identifiers for msg.
func NewChatContext(msg Message) *ChatContext {
	chatID := formatChatID(msg.Chat.ID)

	history := historyKeyPrefix + chatID
	if msg.Chat.ThreadID != 0 && msg.Chat.Type.IsGroup() {
		history += ":" + formatChatID(int64(msg.Chat.ThreadID))
	}
	if channel := strings.TrimSpace(msg.Channel); channel != "" {
		history = channel + ":" + history
	}

	chatType := msg.Chat.Type
	if chatType == "" {
		chatType = ChatTypeOther
	}

	return &ChatContext{
		ChatType:   chatType,
		ChatID:     chatID,
		DedupKey:   dedupKeyPrefix + history,
		HistoryKey: history,
		channel:    msg.Channel,
		chatID:     msg.Chat.ID,
		threadID:   msg.Chat.ThreadID,
		replyTo:    msg.ID,
	}
}

// Reply builds a terminal response addressed to the originating chat.
func (c *ChatContext) Reply(text string) *Response {
	return &Response{
		Channel:          c.channel,
		ChatID:           c.chatID,
		ThreadID:         c.threadID,
		ReplyToMessageID: c.replyTo,
		Text:             text,
	}
}
