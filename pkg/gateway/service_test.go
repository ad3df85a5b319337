package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"msggate/pkg/bus"
	"msggate/pkg/channel"
	"msggate/pkg/config"
	"msggate/pkg/logger"
	"msggate/pkg/store"

	"github.com/stretchr/testify/require"
)

var errPutFailed = errors.New("put failed")

type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) Put(context.Context, string, string, time.Duration) error {
	return errPutFailed
}

type toggledHealthStore struct {
	*store.MemoryStore

	mu        sync.Mutex
	healthErr error
}

func (s *toggledHealthStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

func (s *toggledHealthStore) setHealthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

type purgingStore struct {
	*store.MemoryStore
	purged int
}

func (s *purgingStore) PurgeExpired(context.Context) (int64, error) {
	s.purged++
	return 3, nil
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {Running: true}}}
	if svc.isReady() {
		t.Fatal("expected not ready without store health")
	}

	svc.storeLastOKAt = time.Now().UTC()
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and healthy store")
	}

	svc.storeLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready when store has error")
	}

	svc.storeLastErr = ""
	svc.channelStates["telegram"] = channelState{Running: false}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}
}

func TestNewServiceRequiresAdapter(t *testing.T) {
	_, err := newService(&config.Config{}, store.NewMemoryStore(), nil, nil)
	require.Error(t, err)

	_, err = NewService(context.Background(), nil, nil, nil)
	require.Error(t, err)
}

func TestNewServiceOpensConfiguredStore(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}}
	adapter := &scriptedAdapter{name: "telegram", done: make(chan struct{})}

	svc, err := NewService(context.Background(), cfg, []channel.Adapter{adapter}, logger.Discard())
	require.NoError(t, err)
	require.IsType(t, &store.MemoryStore{}, svc.store)
	require.Nil(t, svc.lanes)
	require.Equal(t, []string{"diagnostics", "env_check", "dedup", "auth", "content_type", "dispatch"}, svc.pipeline.Handlers())

	cfg.Storage.Driver = "etcd"
	_, err = NewService(context.Background(), cfg, []channel.Adapter{adapter}, logger.Discard())
	require.ErrorContains(t, err, "etcd")
}

func TestHandleInboundPublishesOutcomeEvents(t *testing.T) {
	cfg := &config.Config{Guard: config.GuardConfig{SafeMode: true, AllowAll: true}}
	svc, err := newService(cfg, store.NewMemoryStore(), []channel.Adapter{&scriptedAdapter{name: "telegram"}}, logger.Discard())
	require.NoError(t, err)

	events, unsubscribe := svc.Events().SubscribeEvents(context.Background(), 10)
	defer unsubscribe()

	msg := textMessage(100, 1, bus.ChatTypePrivate, "/start")

	resp, err := svc.handleInbound(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, resp)

	resp, err = svc.handleInbound(context.Background(), msg)
	require.NoError(t, err)
	require.Nil(t, resp)

	first := <-events
	require.Equal(t, bus.EventMessageResponded, first.Type)
	require.Equal(t, "dispatch", first.Handler)
	require.Equal(t, "100", first.ChatID)

	second := <-events
	require.Equal(t, bus.EventMessageRejected, second.Type)
	require.Equal(t, "dedup", second.Handler)
	require.Contains(t, second.Reason, "duplicate")
}

func TestHandleInboundSerializesPerChat(t *testing.T) {
	cfg := &config.Config{Guard: config.GuardConfig{SafeMode: true, AllowAll: true, SerializePerChat: true}}
	svc, err := newService(cfg, store.NewMemoryStore(), []channel.Adapter{&scriptedAdapter{name: "telegram"}}, logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, svc.lanes)

	msg := textMessage(100, 1, bus.ChatTypePrivate, "/id")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		responses int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.handleInbound(context.Background(), msg)
			if err != nil {
				t.Errorf("handleInbound: %v", err)
				return
			}
			if resp != nil {
				mu.Lock()
				responses++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, responses)
	require.Zero(t, svc.lanes.size())
}

func TestPurgeExpiredSweepsSupportingStores(t *testing.T) {
	kv := &purgingStore{MemoryStore: store.NewMemoryStore()}
	svc, err := newService(&config.Config{}, kv, []channel.Adapter{&scriptedAdapter{name: "telegram"}}, logger.Discard())
	require.NoError(t, err)

	svc.purgeExpired(context.Background())
	require.Equal(t, 1, kv.purged)

	svc.store = store.NewMemoryStore()
	svc.purgeExpired(context.Background())
}

func TestChatLanesBlockSameKey(t *testing.T) {
	lanes := newChatLanes()

	release, err := lanes.acquire(context.Background(), "a")
	require.NoError(t, err)

	other, err := lanes.acquire(context.Background(), "b")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lanes.acquire(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, lanes.size())

	release()
	release()
	require.Zero(t, lanes.size())

	again, err := lanes.acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
}
