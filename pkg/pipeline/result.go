package pipeline

import (
	"errors"
	"fmt"

	"msggate/pkg/bus"
)

// ErrSilentDrop matches every rejection that ends an invocation without a
// reply. Callers discard these (at most logging them).
var ErrSilentDrop = errors.New("silent drop")

var (
	ErrDuplicateMessage   = fmt.Errorf("%w: duplicate message", ErrSilentDrop)
	ErrUnsupportedContext = fmt.Errorf("%w: unsupported context", ErrSilentDrop)
	ErrUnsupportedMessage = fmt.Errorf("%w: unsupported message shape", ErrSilentDrop)
)

// Outcome is the three-way decision a handler makes about a message.
type Outcome int

const (
	// Continue passes the message to the next handler.
	Continue Outcome = iota
	// Terminate stops the pipeline with a response for the originating chat.
	Terminate
	// Reject stops the pipeline without any reply.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is a handler decision, and also the outcome of a whole run. For a
// run, Handler names the stage that stopped it.
type Result struct {
	Outcome  Outcome
	Response *bus.Response
	Reason   error
	Handler  string
}

// Next lets the message through to the next handler.
func Next() Result {
	return Result{Outcome: Continue}
}

// Respond stops the pipeline with resp. A nil resp is the same as Next.
func Respond(resp *bus.Response) Result {
	if resp == nil {
		return Next()
	}
	return Result{Outcome: Terminate, Response: resp}
}

// Drop stops the pipeline silently. reason should wrap ErrSilentDrop.
func Drop(reason error) Result {
	if reason == nil {
		reason = ErrSilentDrop
	}
	return Result{Outcome: Reject, Reason: reason}
}
