package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/dormworry/dormclient/internal/domain"
)

// Store is the per-room message cache. It keeps each room's messages in
// chronological order and owns the duplicate-detection rules the
// reconciler relies on.
//
// Two messages are considered the same send when either:
//   - their ids match exactly, or
//   - they have the same sender and content and their timestamps fall
//     within the tolerance window. This catches the optimistic echo racing
//     its server confirmation.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string][]domain.Message
	window time.Duration
}

func New(window time.Duration) *Store {
	return &Store{
		rooms:  make(map[string][]domain.Message),
		window: window,
	}
}

// Outcome reports what Upsert did with a candidate message.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeResolved
	OutcomeDuplicate
)

// Upsert runs the duplicate rules and the resulting mutation under one
// lock, so a message delivered simultaneously on two paths can never slip
// past the check twice. It returns the canonical entry: the appended
// message, the confirmation that replaced a temporary one, or the existing
// entry the candidate duplicates.
func (s *Store) Upsert(roomID string, msg domain.Message) (domain.Message, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.rooms[roomID]
	for i, existing := range msgs {
		if s.sameSend(existing, msg) {
			if existing.IsTemporary() && !msg.IsTemporary() {
				msgs[i] = msg
				return msg, OutcomeResolved
			}
			return existing, OutcomeDuplicate
		}
	}

	s.appendLocked(roomID, msg)
	return msg, OutcomeAppended
}

// Append inserts a message preserving chronological order. Messages with
// equal timestamps keep arrival order.
func (s *Store) Append(roomID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(roomID, msg)
}

func (s *Store) appendLocked(roomID string, msg domain.Message) {
	msgs := append(s.rooms[roomID], msg)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp.Time)
	})
	s.rooms[roomID] = msgs
}

// Contains reports whether the candidate is already represented in the
// room under either matching rule.
func (s *Store) Contains(roomID string, candidate domain.Message) bool {
	_, ok := s.Match(roomID, candidate)
	return ok
}

// Match returns the existing entry the candidate duplicates, if any.
func (s *Store) Match(roomID string, candidate domain.Message) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.rooms[roomID] {
		if s.sameSend(existing, candidate) {
			return existing, true
		}
	}
	return domain.Message{}, false
}

func (s *Store) sameSend(a, b domain.Message) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	if !domain.SameID(a.SenderID, b.SenderID) || a.Content != b.Content {
		return false
	}
	delta := a.Timestamp.Sub(b.Timestamp.Time)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.window
}

// ResolveTemporary replaces the entry carrying tempID with the confirmed
// message, in place. Position is preserved so the confirmation never
// reorders the visible timeline. Returns false when no such entry exists.
func (s *Store) ResolveTemporary(roomID, tempID string, final domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.rooms[roomID]
	for i, existing := range msgs {
		if existing.ID == tempID {
			msgs[i] = final
			return true
		}
	}
	return false
}

// Messages returns a copy of the room's timeline, oldest first.
func (s *Store) Messages(roomID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.rooms[roomID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// NewestID returns the id of the room's newest message, or "" for an empty
// room. The poller uses it to detect unchanged batches.
func (s *Store) NewestID(roomID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.rooms[roomID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].ID
}

// Len returns the number of cached messages for a room.
func (s *Store) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

// Drop discards a room's timeline on teardown.
func (s *Store) Drop(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
