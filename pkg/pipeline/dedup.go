package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"msggate/pkg/bus"
	"msggate/pkg/store"
)

// DedupFilter drops messages whose id was already seen in the chat's recent
// window. It is a no-op unless safe mode is on.
//
// The window is read and written without a transaction, so two deliveries of
// the same id racing in the same chat can both pass. Suppression is
// best-effort under concurrent delivery.
type DedupFilter struct {
	store   store.Store
	enabled bool
	log     *slog.Logger
}

func NewDedupFilter(s store.Store, policy Policy, log *slog.Logger) *DedupFilter {
	if log == nil {
		log = slog.Default()
	}
	return &DedupFilter{store: s, enabled: policy.SafeMode, log: log}
}

func (f *DedupFilter) Name() string { return "dedup" }

func (f *DedupFilter) Handle(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (Result, error) {
	if !f.enabled || f.store == nil {
		return Next(), nil
	}

	w := f.load(ctx, chat.DedupKey)
	if w.contains(msg.ID) {
		return Drop(ErrDuplicateMessage), nil
	}

	w.push(msg.ID)
	payload, err := w.encode()
	if err != nil {
		return Result{}, fmt.Errorf("encode dedup window: %w", err)
	}
	if err := f.store.Put(ctx, chat.DedupKey, payload, 0); err != nil {
		return Result{}, fmt.Errorf("persist dedup window: %w", err)
	}

	return Next(), nil
}

// load returns the stored window, or an empty one when the key is missing,
// unreadable or malformed.
func (f *DedupFilter) load(ctx context.Context, key string) window {
	raw, err := f.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return window{}
	}
	if err != nil {
		f.log.Warn("Dedup window read failed, starting empty", "key", key, "error", err)
		return window{}
	}

	w, err := decodeWindow(raw)
	if err != nil {
		f.log.Warn("Dedup window malformed, starting empty", "key", key, "error", err)
		return window{}
	}
	return w
}
