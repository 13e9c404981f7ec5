package domain

import (
	"sync"
	"time"
)

// RoomSession is the client-local state for one open chat room. It is
// created when a room view is opened and discarded on leave; nothing in it
// is persisted.
type RoomSession struct {
	RoomID   string
	JoinedAt time.Time

	connected     bool
	pollingActive bool
	mu            sync.RWMutex
}

func NewRoomSession(roomID string) *RoomSession {
	return &RoomSession{
		RoomID:   roomID,
		JoinedAt: time.Now(),
	}
}

func (s *RoomSession) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *RoomSession) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *RoomSession) SetPolling(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollingActive = active
}

func (s *RoomSession) IsPolling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollingActive
}
