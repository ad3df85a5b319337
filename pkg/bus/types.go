package bus

import (
	"encoding/json"
	"strconv"
)

// ChatType is the transport-reported category of a chat.
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
	ChatTypeOther      ChatType = "other"
)

// ParseChatType maps a raw transport chat type onto the known set.
func ParseChatType(raw string) ChatType {
	switch ChatType(raw) {
	case ChatTypePrivate, ChatTypeGroup, ChatTypeSupergroup, ChatTypeChannel:
		return ChatType(raw)
	default:
		return ChatTypeOther
	}
}

// IsGroup reports whether the chat type is one of the group-like variants.
func (t ChatType) IsGroup() bool {
	return t == ChatTypeGroup || t == ChatTypeSupergroup
}

// Chat identifies the chat a message belongs to.
type Chat struct {
	ID       int64    `json:"id"`
	Type     ChatType `json:"type"`
	ThreadID int      `json:"thread_id,omitempty"`
}

// Message is one inbound unit. ID is unique per chat, not globally.
type Message struct {
	Channel  string `json:"channel,omitempty"`
	ID       int64  `json:"message_id"`
	Chat     Chat   `json:"chat"`
	SenderID int64  `json:"sender_id,omitempty"`
	Text     string `json:"text,omitempty"`
	Caption  string `json:"caption,omitempty"`
	HasPhoto bool   `json:"has_photo,omitempty"`
	// Kind names the attachment type for logging when the message carries
	// something other than text or a photo (sticker, voice, document, ...).
	Kind string `json:"kind,omitempty"`
	// Raw is the transport payload as received, kept for diagnostics.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// HasText reports whether the message carries text or a caption.
func (m Message) HasText() bool {
	return m.Text != "" || m.Caption != ""
}

// Body returns the text, falling back to the caption.
func (m Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Response is a terminal reply to deliver verbatim to the originating chat.
type Response struct {
	Channel          string            `json:"channel,omitempty"`
	ChatID           int64             `json:"chat_id"`
	ThreadID         int               `json:"thread_id,omitempty"`
	ReplyToMessageID int64             `json:"reply_to_message_id,omitempty"`
	Text             string            `json:"text"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func formatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
