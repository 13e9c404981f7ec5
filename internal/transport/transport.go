package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dormworry/dormclient/internal/config"
	"github.com/dormworry/dormclient/internal/domain"
	"github.com/dormworry/dormclient/pkg/log"
)

var (
	ErrNoSession    = errors.New("no session token for realtime connection")
	ErrNotConnected = errors.New("realtime transport not connected")
	ErrClosed       = errors.New("transport closed")
)

// State is the adapter's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Credentials supplies the handshake identity. Satisfied by
// *session.Session.
type Credentials interface {
	Token() (string, error)
	CurrentUserID() string
}

// Handler receives the raw payload of one event.
type Handler func(payload []byte)

// Subscription identifies one registered handler so it can be removed
// without touching other subscribers of the same event.
type Subscription struct {
	event string
	id    uint64
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Adapter is the realtime transport: it dials the chat endpoint,
// authenticates with the session's token, fans incoming events out to
// subscribers, and reconnects with a bounded fixed-interval retry.
type Adapter struct {
	cfg   config.WebSocketConfig
	creds Credentials
	dial  func(ctx context.Context, url string) (*websocket.Conn, error)

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     State
	handlers  map[string][]handlerEntry
	stateSubs []func(State)
	nextSubID uint64
	send      chan []byte
	closed    bool
	connGen   int
}

func New(cfg config.WebSocketConfig, creds Credentials) *Adapter {
	a := &Adapter{
		cfg:      cfg,
		creds:    creds,
		handlers: make(map[string][]handlerEntry),
		send:     make(chan []byte, 256),
	}
	a.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	}
	return a
}

// Connect establishes the realtime connection, or returns the existing
// one. Without a session token it logs and fails with ErrNoSession; no
// shared state is touched.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.creds.Token()
	if err != nil {
		log.L().Warn().Err(err).Msg("realtime connect skipped: no credentials")
		return ErrNoSession
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.state == StateConnected {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	a.setState(StateConnecting)

	conn, err := a.dial(ctx, a.cfg.URL)
	if err != nil {
		a.setState(StateDisconnected)
		log.L().Error().Err(err).Str(log.FieldURL, a.cfg.URL).Msg("realtime dial failed")
		return err
	}

	a.attach(conn)

	// Handshake: identify before anything else is sent.
	auth := domain.AuthEvent{
		Type:   domain.EvtAuth,
		Token:  token,
		UserID: a.creds.CurrentUserID(),
	}
	if err := a.enqueue(auth); err != nil {
		return err
	}

	a.setState(StateConnected)
	log.L().Info().Str(log.FieldURL, a.cfg.URL).Msg("realtime connected")
	return nil
}

func (a *Adapter) attach(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.connGen++
	gen := a.connGen
	a.mu.Unlock()

	go a.writePump(conn, gen)
	go a.readPump(conn, gen)
}

// Emit sends an event payload, lazily connecting first if needed. The
// payload carries its own type discriminator.
func (a *Adapter) Emit(ctx context.Context, payload interface{}) error {
	a.mu.RLock()
	connected := a.state == StateConnected
	closed := a.closed
	a.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !connected {
		if err := a.Connect(ctx); err != nil {
			return err
		}
	}
	return a.enqueue(payload)
}

func (a *Adapter) enqueue(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case a.send <- data:
		return nil
	default:
		return ErrNotConnected
	}
}

// On registers a handler for an event. Handlers accumulate: a later On
// never replaces an earlier subscriber for the same event. Either event
// naming dialect may be passed.
func (a *Adapter) On(event string, fn Handler) Subscription {
	event = domain.CanonicalEvent(event)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSubID++
	sub := Subscription{event: event, id: a.nextSubID}
	a.handlers[event] = append(a.handlers[event], handlerEntry{id: sub.id, fn: fn})
	return sub
}

// Off removes exactly the handler the subscription refers to.
func (a *Adapter) Off(sub Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := a.handlers[sub.event]
	for i, entry := range entries {
		if entry.id == sub.id {
			a.handlers[sub.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// OnStateChange registers a connection-state observer.
func (a *Adapter) OnStateChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateSubs = append(a.stateSubs, fn)
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Close shuts the transport down for good; no reconnect follows.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	a.setState(StateDisconnected)
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(a.cfg.WriteWait))
		return conn.Close()
	}
	return nil
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	subs := make([]func(State), len(a.stateSubs))
	copy(subs, a.stateSubs)
	a.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (a *Adapter) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(a.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.L().Warn().Err(err).Msg("realtime read error")
			}
			conn.Close()
			a.handleDisconnect(gen)
			return
		}
		a.dispatch(message)
	}
}

func (a *Adapter) writePump(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()

	for {
		// Stop writing once a newer connection took over.
		a.mu.RLock()
		stale := a.connGen != gen || a.closed
		a.mu.RUnlock()
		if stale {
			return
		}

		select {
		case message := <-a.send:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *Adapter) dispatch(message []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		log.L().Warn().Err(err).Msg("undecodable realtime event")
		return
	}
	event := domain.CanonicalEvent(base.Type)

	a.mu.RLock()
	entries := make([]handlerEntry, len(a.handlers[event]))
	copy(entries, a.handlers[event])
	a.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(message)
	}
}

// handleDisconnect runs the bounded reconnect loop: a fixed interval, up
// to MaxReconnects attempts. Exhausting the bound surfaces a disconnected
// state to subscribers and stops retrying.
func (a *Adapter) handleDisconnect(gen int) {
	a.mu.Lock()
	if a.closed || a.connGen != gen {
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.mu.Unlock()

	a.setState(StateConnecting)

	for attempt := 1; attempt <= a.cfg.MaxReconnects; attempt++ {
		time.Sleep(a.cfg.ReconnectInterval)

		a.mu.RLock()
		closed := a.closed
		a.mu.RUnlock()
		if closed {
			return
		}

		token, err := a.creds.Token()
		if err != nil {
			log.L().Warn().Err(err).Msg("reconnect abandoned: no credentials")
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := a.dial(ctx, a.cfg.URL)
		cancel()
		if err != nil {
			log.L().Warn().Err(err).Int(log.FieldAttempt, attempt).Msg("reconnect failed")
			continue
		}

		a.attach(conn)
		a.enqueue(domain.AuthEvent{
			Type:   domain.EvtAuth,
			Token:  token,
			UserID: a.creds.CurrentUserID(),
		})
		a.setState(StateConnected)
		log.L().Info().Int(log.FieldAttempt, attempt).Msg("realtime reconnected")
		return
	}

	log.L().Error().Int(log.FieldAttempt, a.cfg.MaxReconnects).Msg("reconnect attempts exhausted")
	a.setState(StateDisconnected)
}
