package pipeline

import (
	"context"
	"fmt"

	"msggate/pkg/bus"
)

const (
	privateDeniedText = "You are not in the white list, please contact the administrator to add you to the white list. Your chat_id: %s"
	groupDeniedText   = "Your group is not in the white list, please contact the administrator to add it to the white list. Your chat_id: %s"
	chatTypeText      = "Not support chat type: %s"
)

// AuthFilter enforces the private and group whitelists. Denials for known
// chat categories are replies carrying the chat id so an operator can
// whitelist it; messages from groups while group support is off are dropped
// without a reply.
type AuthFilter struct {
	policy Policy
}

func NewAuthFilter(policy Policy) *AuthFilter {
	return &AuthFilter{policy: policy}
}

func (f *AuthFilter) Name() string { return "auth" }

func (f *AuthFilter) Handle(_ context.Context, _ bus.Message, chat *bus.ChatContext) (Result, error) {
	if f.policy.AllowAll {
		return Next(), nil
	}

	switch {
	case chat.ChatType == bus.ChatTypePrivate:
		if f.policy.ChatAllowed(chat.ChatID) {
			return Next(), nil
		}
		return Respond(chat.Reply(fmt.Sprintf(privateDeniedText, chat.ChatID))), nil

	case chat.ChatType.IsGroup():
		if !f.policy.GroupChatEnabled {
			return Drop(ErrUnsupportedContext), nil
		}
		if f.policy.GroupAllowed(chat.ChatID) {
			return Next(), nil
		}
		return Respond(chat.Reply(fmt.Sprintf(groupDeniedText, chat.ChatID))), nil

	default:
		return Respond(chat.Reply(fmt.Sprintf(chatTypeText, chat.ChatType))), nil
	}
}
