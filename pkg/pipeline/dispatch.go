package pipeline

import (
	"context"

	"msggate/pkg/bus"
)

// CommandHandler processes accepted text and caption messages. A nil response
// means no reply.
type CommandHandler interface {
	HandleCommand(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error)
}

// CommandFunc adapts a function into a CommandHandler.
type CommandFunc func(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error)

func (f CommandFunc) HandleCommand(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
	return f(ctx, msg, chat)
}

// DispatchFilter hands text and caption messages to the command handler and
// propagates its result. Other shapes pass through untouched.
type DispatchFilter struct {
	commands CommandHandler
}

func NewDispatchFilter(commands CommandHandler) *DispatchFilter {
	return &DispatchFilter{commands: commands}
}

func (f *DispatchFilter) Name() string { return "dispatch" }

func (f *DispatchFilter) Handle(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error) {
	if !msg.HasText() || f.commands == nil {
		return Next(), nil
	}

	resp, err := f.commands.HandleCommand(ctx, msg, chat)
	if err != nil {
		return Result{}, err
	}
	return Respond(resp), nil
}
