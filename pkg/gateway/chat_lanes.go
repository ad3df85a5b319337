package gateway

import (
	"context"
	"sync"
)

// chatLanes serializes pipeline runs per chat inside this process. Runs for
// different chats proceed in parallel. Idle lanes are dropped.
type chatLanes struct {
	mu    sync.Mutex
	lanes map[string]*chatLane
}

// chatLane is the lock and waiter count tracked for one chat key.
type chatLane struct {
	slot chan struct{}
	refs int
}

func newChatLanes() *chatLanes {
	return &chatLanes{lanes: make(map[string]*chatLane)}
}

// acquire blocks until the lane for key is free or ctx ends. The returned
// release must be called exactly once.
func (m *chatLanes) acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	lane, ok := m.lanes[key]
	if !ok {
		lane = &chatLane{slot: make(chan struct{}, 1)}
		m.lanes[key] = lane
	}
	lane.refs++
	m.mu.Unlock()

	select {
	case lane.slot <- struct{}{}:
	case <-ctx.Done():
		m.drop(key, lane)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lane.slot
			m.drop(key, lane)
		})
	}, nil
}

func (m *chatLanes) drop(key string, lane *chatLane) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lane.refs--
	if lane.refs == 0 {
		delete(m.lanes, key)
	}
}

// size reports how many chats currently hold or wait for a lane.
func (m *chatLanes) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}
