package pipeline

import (
	"strings"

	"msggate/pkg/config"
)

// Policy is an immutable snapshot of the guard configuration. Handlers get it
// at construction so nothing reads process-wide state during a run.
type Policy struct {
	AllowAll         bool
	SafeMode         bool
	GroupChatEnabled bool
	DebugMode        bool

	chatWhiteList  map[string]struct{}
	groupWhiteList map[string]struct{}
}

func NewPolicy(cfg config.GuardConfig) Policy {
	return Policy{
		AllowAll:         cfg.AllowAll,
		SafeMode:         cfg.SafeMode,
		GroupChatEnabled: cfg.GroupChatEnabled,
		DebugMode:        cfg.DebugMode,
		chatWhiteList:    idSet(cfg.ChatWhiteList),
		groupWhiteList:   idSet(cfg.GroupWhiteList),
	}
}

// ChatAllowed reports whether a private chat id is whitelisted.
func (p Policy) ChatAllowed(chatID string) bool {
	_, ok := p.chatWhiteList[strings.TrimSpace(chatID)]
	return ok
}

// GroupAllowed reports whether a group chat id is whitelisted.
func (p Policy) GroupAllowed(chatID string) bool {
	_, ok := p.groupWhiteList[strings.TrimSpace(chatID)]
	return ok
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
