package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"msggate/pkg/bus"
	"msggate/pkg/store"
)

const (
	lastMessageKeyPrefix = "last_message:"
	lastMessageTTL       = time.Hour
	diagnosticsTimeout   = 5 * time.Second
)

// DiagnosticsCapture stores the raw inbound message under a short-lived key
// when debug mode is on. The write happens in the background and never
// affects the run.
type DiagnosticsCapture struct {
	store   store.Store
	enabled bool
	ttl     time.Duration
	log     *slog.Logger

	inflight sync.WaitGroup
}

func NewDiagnosticsCapture(s store.Store, policy Policy, log *slog.Logger) *DiagnosticsCapture {
	if log == nil {
		log = slog.Default()
	}
	return &DiagnosticsCapture{
		store:   s,
		enabled: policy.DebugMode,
		ttl:     lastMessageTTL,
		log:     log,
	}
}

func (d *DiagnosticsCapture) Name() string { return "diagnostics" }

func (d *DiagnosticsCapture) Handle(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error) {
	if !d.enabled || d.store == nil {
		return Next(), nil
	}

	snapshot := []byte(msg.Raw)
	if len(snapshot) == 0 {
		var err error
		if snapshot, err = json.Marshal(msg); err != nil {
			d.log.Warn("Failed to encode message snapshot", "chat_id", chat.ChatID, "error", err)
			return Next(), nil
		}
	}

	key := LastMessageKey(chat)
	writeCtx := context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		writeCtx, cancel := context.WithTimeout(writeCtx, diagnosticsTimeout)
		defer cancel()

		if err := d.store.Put(writeCtx, key, string(snapshot), d.ttl); err != nil {
			d.log.Warn("Failed to store message snapshot", "key", key, "error", err)
		}
	}()

	return Next(), nil
}

// Flush waits for pending snapshot writes.
func (d *DiagnosticsCapture) Flush() {
	d.inflight.Wait()
}

// LastMessageKey is the key the latest raw message of a chat is stored under.
func LastMessageKey(chat *bus.ChatContext) string {
	return lastMessageKeyPrefix + chat.HistoryKey
}
