package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"msggate/pkg/bus"
	"msggate/pkg/store"
)

type putCall struct {
	key   string
	value string
	ttl   time.Duration
}

// recordingStore wraps a MemoryStore and records every Put.
type recordingStore struct {
	*store.MemoryStore

	mu     sync.Mutex
	puts   []putCall
	getErr error
	putErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *recordingStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.puts = append(s.puts, putCall{key: key, value: value, ttl: ttl})
	s.mu.Unlock()

	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, value, ttl)
}

func (s *recordingStore) putCalls() []putCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]putCall(nil), s.puts...)
}

var errStoreDown = errors.New("store down")

func privateMessage(chatID, messageID int64, text string) bus.Message {
	return bus.Message{
		ID:   messageID,
		Chat: bus.Chat{ID: chatID, Type: bus.ChatTypePrivate},
		Text: text,
	}
}

func groupMessage(chatID, messageID int64, text string) bus.Message {
	return bus.Message{
		ID:   messageID,
		Chat: bus.Chat{ID: chatID, Type: bus.ChatTypeGroup},
		Text: text,
	}
}

// recordingHandler returns a fixed result and counts calls.
type recordingHandler struct {
	name   string
	result Result
	err    error
	calls  int
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(context.Context, bus.Message, *bus.ChatContext) (Result, error) {
	h.calls++
	return h.result, h.err
}
