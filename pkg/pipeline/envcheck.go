package pipeline

import (
	"context"

	"msggate/pkg/bus"
	"msggate/pkg/store"
)

const storageMissingText = "Storage backend is not configured"

// EnvChecker answers every message with a configuration error while the
// process runs without a storage backend.
type EnvChecker struct {
	store store.Store
}

func NewEnvChecker(s store.Store) *EnvChecker {
	return &EnvChecker{store: s}
}

func (c *EnvChecker) Name() string { return "env_check" }

func (c *EnvChecker) Handle(_ context.Context, _ bus.Message, chat *bus.ChatContext) (Result, error) {
	if c.store == nil {
		return Respond(chat.Reply(storageMissingText)), nil
	}
	return Next(), nil
}
