// Package pipeline implements the inbound-message gatekeeping chain: an ordered
// list of handlers run once per message, stopping at the first handler that
// responds, rejects or fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"msggate/pkg/bus"
	"msggate/pkg/logger"
	"msggate/pkg/store"
)

// Handler is one stage of the pipeline. Returning an error aborts the run;
// the error is never turned into a response.
type Handler interface {
	Name() string
	Handle(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error)
}

// HandlerFunc adapts a function into a named Handler.
type HandlerFunc struct {
	name string
	fn   func(context.Context, bus.Message, *bus.ChatContext) (Result, error)
}

func Func(name string, fn func(context.Context, bus.Message, *bus.ChatContext) (Result, error)) HandlerFunc {
	return HandlerFunc{name: name, fn: fn}
}

func (h HandlerFunc) Name() string { return h.name }

func (h HandlerFunc) Handle(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error) {
	return h.fn(ctx, msg, chat)
}

// flusher is implemented by handlers with background work to drain.
type flusher interface {
	Flush()
}

// Pipeline runs handlers in registration order. The chain is fixed at
// construction; conditional behaviour lives inside each handler.
type Pipeline struct {
	handlers []Handler
}

func New(handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: append([]Handler(nil), handlers...)}
}

// Deps are the collaborators of the default chain.
type Deps struct {
	// Store may be nil; the chain then answers every message with a
	// configuration error.
	Store    store.Store
	Commands CommandHandler
	Log      *slog.Logger
}

// NewDefault builds the standard chain: diagnostics capture, environment
// check, dedup, authorization, content type, dispatch.
func NewDefault(policy Policy, deps Deps) *Pipeline {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return New(
		NewDiagnosticsCapture(deps.Store, policy, logger.Component(log, "pipeline.diagnostics")),
		NewEnvChecker(deps.Store),
		NewDedupFilter(deps.Store, policy, logger.Component(log, "pipeline.dedup")),
		NewAuthFilter(policy),
		NewContentTypeFilter(),
		NewDispatchFilter(deps.Commands),
	)
}

// Handlers lists handler names in execution order.
func (p *Pipeline) Handlers() []string {
	names := make([]string, 0, len(p.handlers))
	for _, h := range p.handlers {
		names = append(names, h.Name())
	}
	return names
}

// Run passes msg through every handler until one stops the chain. A run where
// every handler continues yields a Continue result with no response.
func (p *Pipeline) Run(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error) {
	if chat == nil {
		chat = bus.NewChatContext(msg)
	}

	for _, h := range p.handlers {
		res, err := h.Handle(ctx, msg, chat)
		if err != nil {
			return Result{Handler: h.Name()}, fmt.Errorf("%s: %w", h.Name(), err)
		}

		switch res.Outcome {
		case Continue:
			continue
		case Terminate:
			if res.Response == nil {
				continue
			}
		case Reject:
			if res.Reason == nil {
				res.Reason = ErrSilentDrop
			}
		default:
			return Result{Handler: h.Name()}, fmt.Errorf("%s: unknown outcome %s", h.Name(), res.Outcome)
		}

		res.Handler = h.Name()
		return res, nil
	}

	return Next(), nil
}

// Close waits for background work started by handlers.
func (p *Pipeline) Close() {
	for _, h := range p.handlers {
		if f, ok := h.(flusher); ok {
			f.Flush()
		}
	}
}

// IsSilentDrop reports whether err is a rejection the caller should discard.
func IsSilentDrop(err error) bool {
	return errors.Is(err, ErrSilentDrop)
}
