package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"msggate/pkg/bus"
	"msggate/pkg/channel"
	"msggate/pkg/command"
	"msggate/pkg/config"
	"msggate/pkg/logger"
	"msggate/pkg/pipeline"
	"msggate/pkg/store"
)

const (
	defaultHealthHost   = "0.0.0.0"
	defaultHealthPort   = 18790
	maintenanceInterval = 30 * time.Second
)

var errStoreNotConfigured = errors.New("storage backend is not configured")

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	store    store.Store
	pipeline *pipeline.Pipeline
	lanes    *chatLanes
	events   *bus.MessageBus
	channels []channel.Adapter

	mu            sync.RWMutex
	startedAt     time.Time
	storeLastOKAt time.Time
	storeLastErr  string
	channelStates map[string]channelState
	counters      map[bus.EventType]int64
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StoreDriver   string                  `json:"store_driver"`
	StoreLastOKAt string                  `json:"store_last_ok_at,omitempty"`
	StoreLastErr  string                  `json:"store_last_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
	Pipeline      []string                `json:"pipeline,omitempty"`
	Messages      map[string]int64        `json:"messages,omitempty"`
}

// NewService opens the configured store and assembles the default pipeline.
func NewService(ctx context.Context, cfg *config.Config, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	kv, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	svc, err := newService(cfg, kv, adapters, log)
	if err != nil {
		_ = store.Close(kv)
		return nil, err
	}
	return svc, nil
}

func newService(cfg *config.Config, kv store.Store, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	p := pipeline.NewDefault(pipeline.NewPolicy(cfg.Guard), pipeline.Deps{
		Store:    kv,
		Commands: command.NewRouter(),
		Log:      log,
	})

	var lanes *chatLanes
	if cfg.Guard.SerializePerChat {
		lanes = newChatLanes()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           logger.Component(log, "gateway.service"),
		store:         kv,
		pipeline:      p,
		lanes:         lanes,
		events:        bus.NewMessageBus(),
		channels:      adapters,
		channelStates: channelStates,
		counters:      make(map[bus.EventType]int64),
	}, nil
}

// Events exposes pipeline outcome events to observers.
func (s *Service) Events() *bus.MessageBus {
	return s.events
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkStoreHealth(ctx); err != nil && !errors.Is(err, errStoreNotConfigured) {
		return err
	}
	if s.store == nil {
		s.log.Warn("Running without a storage backend; every message will get a configuration error reply")
	}

	events, unsubscribe := s.events.SubscribeEvents(ctx, 0)
	defer unsubscribe()
	go s.countEvents(events)

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	go s.runMaintenance(ctx)

	var wg sync.WaitGroup
	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrors:
	case runErr = <-errCh:
	}

	cancel()
	wg.Wait()
	s.shutdown()
	return runErr
}

// shutdown drains background pipeline work and releases the store.
func (s *Service) shutdown() {
	s.pipeline.Close()
	s.events.Close()
	if err := store.Close(s.store); err != nil {
		s.log.Warn("Failed to close store", "error", err)
	}
}

// handleInbound runs one message through the pipeline. Rejections end
// without a reply; failures are returned to the adapter and never answered.
func (s *Service) handleInbound(ctx context.Context, msg bus.Message) (*bus.Response, error) {
	chat := bus.NewChatContext(msg)

	if s.lanes != nil {
		release, err := s.lanes.acquire(ctx, chat.DedupKey)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	res, err := s.pipeline.Run(ctx, msg, chat)

	event := bus.Event{
		Channel:   msg.Channel,
		ChatID:    chat.ChatID,
		ChatType:  chat.ChatType,
		MessageID: msg.ID,
		Handler:   res.Handler,
	}

	switch {
	case err != nil:
		event.Type = bus.EventMessageFailed
		event.Error = err.Error()
		s.events.PublishEvent(ctx, event)
		s.log.Error("Pipeline failed", "chat_id", chat.ChatID, "message_id", msg.ID, "handler", res.Handler, "error", err)
		return nil, err

	case res.Outcome == pipeline.Reject:
		event.Type = bus.EventMessageRejected
		event.Reason = errorString(res.Reason)
		s.events.PublishEvent(ctx, event)
		s.log.Debug("Message dropped", "chat_id", chat.ChatID, "message_id", msg.ID, "handler", res.Handler, "reason", res.Reason)
		return nil, nil

	case res.Outcome == pipeline.Terminate:
		event.Type = bus.EventMessageResponded
		s.events.PublishEvent(ctx, event)
		s.log.Info("Pipeline responded", "chat_id", chat.ChatID, "message_id", msg.ID, "handler", res.Handler)
		return res.Response, nil

	default:
		event.Type = bus.EventMessageAccepted
		s.events.PublishEvent(ctx, event)
		return nil, nil
	}
}

func (s *Service) countEvents(events <-chan bus.Event) {
	for event := range events {
		s.mu.Lock()
		s.counters[event.Type]++
		s.mu.Unlock()
	}
}

// runMaintenance probes the store and sweeps expired rows on backends that
// keep them.
func (s *Service) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.checkStoreHealth(ctx)
			s.purgeExpired(ctx)
		}
	}
}

func (s *Service) purgeExpired(ctx context.Context) {
	purger, ok := s.store.(store.Purger)
	if !ok {
		return
	}

	removed, err := purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Warn("Failed to purge expired keys", "error", err)
		return
	}
	if removed > 0 {
		s.log.Debug("Purged expired keys", "count", removed)
	}
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/statusz", s.handleStatus)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !s.isReady() {
		status = "not_ready"
	}
	s.respondStatus(w, http.StatusOK, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	messages := make(map[string]int64, len(s.counters))
	for eventType, count := range s.counters {
		messages[string(eventType)] = count
	}

	storeLastOK := ""
	if !s.storeLastOKAt.IsZero() {
		storeLastOK = s.storeLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		StoreDriver:   s.cfg.Storage.Driver,
		StoreLastOKAt: storeLastOK,
		StoreLastErr:  s.storeLastErr,
		Channels:      channels,
		Pipeline:      s.pipeline.Handlers(),
		Messages:      messages,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	if !anyRunning {
		return false
	}

	if s.storeLastOKAt.IsZero() {
		return false
	}

	return s.storeLastErr == ""
}

func (s *Service) checkStoreHealth(ctx context.Context) error {
	if s.store == nil {
		s.mu.Lock()
		s.storeLastErr = errStoreNotConfigured.Error()
		s.mu.Unlock()
		return errStoreNotConfigured
	}

	if err := store.Ping(ctx, s.store); err != nil {
		s.mu.Lock()
		s.storeLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("store health check failed: %w", err)
	}

	s.mu.Lock()
	s.storeLastErr = ""
	s.storeLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
