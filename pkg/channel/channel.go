package channel

import (
	"context"

	"msggate/pkg/bus"
)

// Handler processes one inbound channel message. A nil response means the
// message gets no reply.
type Handler func(context.Context, bus.Message) (*bus.Response, error)

// Adapter bridges one external transport (for example Telegram) into the gateway.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
