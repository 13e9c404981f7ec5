package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dormworry/dormclient/internal/cache"
	"github.com/dormworry/dormclient/internal/config"
	"github.com/dormworry/dormclient/internal/domain"
	"github.com/dormworry/dormclient/internal/poller"
	"github.com/dormworry/dormclient/internal/reconcile"
	"github.com/dormworry/dormclient/internal/session"
	"github.com/dormworry/dormclient/internal/transport"
	"github.com/dormworry/dormclient/pkg/log"
)

// ErrRoomNotActive is returned for operations on a room that was never
// joined or was already left.
var ErrRoomNotActive = errors.New("room not active")

// RoomAPI is the REST surface the engine rides on. Satisfied by
// *api.Client.
type RoomAPI interface {
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	LatestMessages(ctx context.Context, roomID string, limit int) ([]domain.IncomingMessage, error)
}

// Transport is the realtime surface. Satisfied by *transport.Adapter.
type Transport interface {
	Connect(ctx context.Context) error
	Emit(ctx context.Context, payload interface{}) error
	On(event string, fn transport.Handler) transport.Subscription
	Off(sub transport.Subscription)
	Close() error
}

// Snapshot is what subscribers receive on every change: the room's full
// reconciled timeline, its current participants, and which delivery paths
// are live.
type Snapshot struct {
	Messages     []domain.Message
	Participants []domain.Participant

	// Connected reports whether the realtime join went through; Polling
	// reports whether the fallback is active. Both false means the room
	// is dark.
	Connected bool
	Polling   bool
}

// SubscriberFunc receives snapshots for one room.
type SubscriberFunc func(Snapshot)

type room struct {
	session      *domain.RoomSession
	participants []domain.Participant
	subscribers  map[uint64]SubscriberFunc

	// notify serializes snapshot delivery for the room, so subscribers
	// never observe two callbacks at once or out of order.
	notify sync.Mutex
}

// Engine merges socket events, polling fallbacks, and optimistic local
// sends into one deduplicated timeline per room, and fans snapshots out to
// subscribers. It replaces the old pile of competing singleton services
// with one explicitly constructed instance.
type Engine struct {
	sess  *session.Session
	api   RoomAPI
	tr    Transport
	store *cache.Store
	rec   *reconcile.Reconciler
	polls *poller.Poller

	mu      sync.Mutex
	rooms   map[string]*room
	subs    []transport.Subscription
	nextSub uint64
	limit   int
}

func NewEngine(cfg *config.Config, sess *session.Session, apiClient RoomAPI, tr Transport) *Engine {
	e := &Engine{
		sess:  sess,
		api:   apiClient,
		tr:    tr,
		store: cache.New(cfg.Reconcile.DuplicateWindow),
		rooms: make(map[string]*room),
		limit: cfg.Poll.Limit,
	}
	e.rec = reconcile.New(e.store, sess, e.broadcast)
	e.polls = poller.New(cfg.Poll, apiClient, e.rec)

	e.subs = append(e.subs,
		tr.On(domain.EvtNewMessage, e.onNewMessage),
		tr.On(domain.EvtParticipants, e.onParticipants),
	)
	return e
}

// Join opens a room: REST join, realtime join event, initial history load,
// polling activation. Without a valid session it fails before touching any
// shared state.
func (e *Engine) Join(ctx context.Context, roomID string) error {
	if _, err := e.sess.Token(); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("join refused: no session")
		return err
	}

	e.mu.Lock()
	if _, open := e.rooms[roomID]; open {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.api.JoinRoom(ctx, roomID); err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	rs := domain.NewRoomSession(roomID)
	e.mu.Lock()
	e.rooms[roomID] = &room{
		session:     rs,
		subscribers: make(map[uint64]SubscriberFunc),
	}
	e.mu.Unlock()

	if err := e.tr.Emit(ctx, domain.JoinRoomEvent{
		Type:   domain.EvtJoinRoom,
		RoomID: roomID,
		UserID: e.sess.CurrentUserID(),
	}); err != nil {
		// The polling fallback still delivers; degrade, don't fail.
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("realtime join failed, relying on polling")
	} else {
		rs.SetConnected(true)
	}

	if history, err := e.api.LatestMessages(ctx, roomID, e.limit); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("initial history load failed")
	} else {
		e.rec.ApplyBatch(roomID, history, reconcile.SourcePoll)
	}

	e.polls.Activate(roomID)
	rs.SetPolling(true)
	return nil
}

// Subscribe registers a snapshot callback for a room and immediately
// delivers the current state. Multiple subscribers per room coexist.
func (e *Engine) Subscribe(roomID string, fn SubscriberFunc) (uint64, error) {
	e.mu.Lock()
	r, open := e.rooms[roomID]
	if !open {
		e.mu.Unlock()
		return 0, fmt.Errorf("subscribe to %s: %w", roomID, ErrRoomNotActive)
	}
	e.nextSub++
	id := e.nextSub
	r.subscribers[id] = fn
	e.mu.Unlock()

	r.notify.Lock()
	fn(e.snapshot(roomID))
	r.notify.Unlock()
	return id, nil
}

// Unsubscribe removes one subscriber without touching others.
func (e *Engine) Unsubscribe(roomID string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, open := e.rooms[roomID]; open {
		delete(r.subscribers, id)
	}
}

// Send appends an optimistic local echo and emits the message. The
// returned temporary id is replaced in place once the server confirms.
func (e *Engine) Send(ctx context.Context, roomID, content string) (string, error) {
	e.mu.Lock()
	_, open := e.rooms[roomID]
	e.mu.Unlock()
	if !open {
		return "", fmt.Errorf("send to %s: %w", roomID, ErrRoomNotActive)
	}

	tempID := domain.TempIDPrefix + uuid.New().String()
	e.rec.Apply(roomID, domain.IncomingMessage{
		ID:        tempID,
		RoomID:    roomID,
		SenderID:  domain.FlexID(e.sess.CurrentUserID()),
		Content:   content,
		Timestamp: domain.NewTimestamp(time.Now()),
	}, reconcile.SourceLocal)

	if err := e.tr.Emit(ctx, domain.SendMessageEvent{
		Type:    domain.EvtSendMessage,
		RoomID:  roomID,
		Content: content,
		TempID:  tempID,
	}); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("realtime send failed, echo pending poll")
	}
	return tempID, nil
}

// Leave tears a room down. It is best-effort toward the backend: leave
// failures are logged and reported as success, since no durable client
// state depends on confirmation.
func (e *Engine) Leave(ctx context.Context, roomID string) {
	e.mu.Lock()
	r, open := e.rooms[roomID]
	if open {
		delete(e.rooms, roomID)
	}
	e.mu.Unlock()
	if !open {
		return
	}

	e.polls.Deactivate(roomID)
	r.session.SetPolling(false)

	if err := e.tr.Emit(ctx, domain.LeaveRoomEvent{
		Type:   domain.EvtLeaveRoom,
		RoomID: roomID,
		UserID: e.sess.CurrentUserID(),
	}); err != nil {
		log.L().Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("realtime leave failed")
	}
	if err := e.api.LeaveRoom(ctx, roomID); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("leave request failed, treated as left")
	}

	e.store.Drop(roomID)
}

// Messages returns the room's current reconciled timeline.
func (e *Engine) Messages(roomID string) []domain.Message {
	return e.store.Messages(roomID)
}

// Close tears down every room, the poller, and the transport.
func (e *Engine) Close() error {
	e.mu.Lock()
	roomIDs := make([]string, 0, len(e.rooms))
	for roomID := range e.rooms {
		roomIDs = append(roomIDs, roomID)
	}
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, roomID := range roomIDs {
		e.Leave(ctx, roomID)
	}

	e.polls.Close()
	for _, sub := range subs {
		e.tr.Off(sub)
	}
	return e.tr.Close()
}

func (e *Engine) onNewMessage(payload []byte) {
	var evt domain.NewMessageEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		log.L().Warn().Err(err).Msg("undecodable new_message event")
		return
	}
	in := evt.Payload()

	e.mu.Lock()
	_, open := e.rooms[in.RoomID]
	e.mu.Unlock()
	if !open {
		return
	}

	e.rec.Apply(in.RoomID, in, reconcile.SourcePush)
}

func (e *Engine) onParticipants(payload []byte) {
	var evt domain.ParticipantsEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		log.L().Warn().Err(err).Msg("undecodable participants event")
		return
	}

	e.mu.Lock()
	r, open := e.rooms[evt.RoomID]
	if open {
		// Snapshot semantics: the broadcast list replaces the previous
		// one wholesale, so absent members are removed.
		r.participants = evt.Participants
	}
	e.mu.Unlock()
	if !open {
		return
	}

	e.broadcast(evt.RoomID)
}

// broadcast delivers a fresh snapshot to every subscriber of the room.
// Deliveries for one room never overlap: the push path and the poll path
// both land here, and subscribers must see snapshots one at a time.
func (e *Engine) broadcast(roomID string) {
	e.mu.Lock()
	r, open := e.rooms[roomID]
	e.mu.Unlock()
	if !open {
		return
	}

	r.notify.Lock()
	defer r.notify.Unlock()

	e.mu.Lock()
	fns := make([]SubscriberFunc, 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	snap := e.snapshot(roomID)
	for _, fn := range fns {
		fn(snap)
	}
}

func (e *Engine) snapshot(roomID string) Snapshot {
	e.mu.Lock()
	var participants []domain.Participant
	var rs *domain.RoomSession
	if r, open := e.rooms[roomID]; open {
		participants = make([]domain.Participant, len(r.participants))
		copy(participants, r.participants)
		rs = r.session
	}
	e.mu.Unlock()

	snap := Snapshot{
		Messages:     e.store.Messages(roomID),
		Participants: participants,
	}
	if rs != nil {
		snap.Connected = rs.IsConnected()
		snap.Polling = rs.IsPolling()
	}
	return snap
}
