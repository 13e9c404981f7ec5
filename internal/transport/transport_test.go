package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormworry/dormclient/internal/config"
	"github.com/dormworry/dormclient/internal/domain"
)

type stubCreds struct {
	token string
	err   error
	user  string
}

func (s stubCreds) Token() (string, error) { return s.token, s.err }
func (s stubCreds) CurrentUserID() string  { return s.user }

func wsConfig(url string) config.WebSocketConfig {
	return config.WebSocketConfig{
		URL:               url,
		PingInterval:      30 * time.Second,
		PongWait:          60 * time.Second,
		WriteWait:         5 * time.Second,
		MaxMessageSize:    4096,
		ReconnectInterval: 10 * time.Millisecond,
		MaxReconnects:     3,
	}
}

// echoServer upgrades connections and forwards every received frame to the
// received channel.
func echoServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- message
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectWithoutSessionFails(t *testing.T) {
	dialed := false
	a := New(wsConfig("ws://never"), stubCreds{err: errors.New("no token stored")})
	a.dial = func(context.Context, string) (*websocket.Conn, error) {
		dialed = true
		return nil, errors.New("unreachable")
	}

	err := a.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	assert.False(t, dialed, "no connection attempt without credentials")
	assert.Equal(t, StateDisconnected, a.State())
}

func TestConnectSendsAuthHandshake(t *testing.T) {
	srv, received := echoServer(t)
	a := New(wsConfig(wsURL(srv)), stubCreds{token: "tok-1", user: "42"})
	defer a.Close()

	require.NoError(t, a.Connect(context.Background()))
	assert.Equal(t, StateConnected, a.State())

	select {
	case frame := <-received:
		var auth domain.AuthEvent
		require.NoError(t, json.Unmarshal(frame, &auth))
		assert.Equal(t, domain.EvtAuth, auth.Type)
		assert.Equal(t, "tok-1", auth.Token)
		assert.Equal(t, "42", auth.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("auth handshake never arrived")
	}
}

func TestEmitLazilyConnects(t *testing.T) {
	srv, received := echoServer(t)
	a := New(wsConfig(wsURL(srv)), stubCreds{token: "tok-1", user: "42"})
	defer a.Close()

	err := a.Emit(context.Background(), domain.JoinRoomEvent{
		Type:   domain.EvtJoinRoom,
		RoomID: "room-1",
		UserID: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, StateConnected, a.State())

	// Auth handshake first, then the join.
	var frames [][]byte
	for len(frames) < 2 {
		select {
		case frame := <-received:
			frames = append(frames, frame)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 frames, got %d", len(frames))
		}
	}

	var join domain.JoinRoomEvent
	require.NoError(t, json.Unmarshal(frames[1], &join))
	assert.Equal(t, domain.EvtJoinRoom, join.Type)
	assert.Equal(t, "room-1", join.RoomID)
}

func TestHandlersFanOut(t *testing.T) {
	a := New(wsConfig("ws://unused"), stubCreds{token: "tok"})

	var mu sync.Mutex
	var got []string
	first := a.On("newMessage", func([]byte) {
		mu.Lock()
		got = append(got, "first")
		mu.Unlock()
	})
	a.On(domain.EvtNewMessage, func([]byte) {
		mu.Lock()
		got = append(got, "second")
		mu.Unlock()
	})

	// Either dialect on the wire reaches both subscribers.
	a.dispatch([]byte(`{"type":"newMessage"}`))
	assert.ElementsMatch(t, []string{"first", "second"}, got)

	got = nil
	a.Off(first)
	a.dispatch([]byte(`{"type":"new_message"}`))
	assert.Equal(t, []string{"second"}, got)
}

func TestReconnectStopsAfterBound(t *testing.T) {
	cfg := wsConfig("ws://unreachable")
	a := New(cfg, stubCreds{token: "tok", user: "42"})

	attempts := 0
	a.dial = func(context.Context, string) (*websocket.Conn, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	var mu sync.Mutex
	var states []State
	a.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	a.handleDisconnect(0)

	assert.Equal(t, cfg.MaxReconnects, attempts)
	assert.Equal(t, StateDisconnected, a.State())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StateDisconnected, states[len(states)-1])
}

func TestReconnectResumesOnSuccess(t *testing.T) {
	srv, received := echoServer(t)
	a := New(wsConfig(wsURL(srv)), stubCreds{token: "tok", user: "42"})
	defer a.Close()

	a.handleDisconnect(0)

	assert.Equal(t, StateConnected, a.State())
	select {
	case frame := <-received:
		var auth domain.AuthEvent
		require.NoError(t, json.Unmarshal(frame, &auth))
		assert.Equal(t, domain.EvtAuth, auth.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("re-auth never arrived after reconnect")
	}
}

func TestEmitAfterCloseFails(t *testing.T) {
	a := New(wsConfig("ws://unused"), stubCreds{token: "tok"})
	require.NoError(t, a.Close())

	err := a.Emit(context.Background(), domain.BaseEvent{Type: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}
