package domain

// Canonical WebSocket event names. Emits always use these.
const (
	EvtAuth         = "auth"
	EvtJoinRoom     = "join_room"
	EvtLeaveRoom    = "leave_room"
	EvtSendMessage  = "send_message"
	EvtNewMessage   = "new_message"
	EvtParticipants = "active_users_updated"
)

// The backend has shipped both naming dialects for the same events; accept
// either on receive.
var eventAliases = map[string]string{
	"joinRoom":            EvtJoinRoom,
	"leaveRoom":           EvtLeaveRoom,
	"sendMessage":         EvtSendMessage,
	"newMessage":          EvtNewMessage,
	"participantsUpdated": EvtParticipants,
}

// CanonicalEvent maps either dialect of an event name to its canonical form.
// Unknown names pass through unchanged.
func CanonicalEvent(name string) string {
	if canonical, ok := eventAliases[name]; ok {
		return canonical
	}
	return name
}

// BaseEvent carries only the discriminator; payloads are re-decoded once the
// type is known.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> server payloads.

// AuthEvent is sent immediately after the socket opens; the handshake
// carries the bearer token and user id.
type AuthEvent struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type JoinRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type LeaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SendMessageEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	// TempID lets the server echo back which optimistic message this
	// confirms; older backends ignore it.
	TempID string `json:"tempId,omitempty"`
}

// Server -> client payloads.

type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message IncomingMessage `json:"message"`
	// Some backend versions flatten the message into the event itself.
	IncomingMessage
}

// Payload returns the message regardless of which shape the backend used.
func (e NewMessageEvent) Payload() IncomingMessage {
	if e.Message.ID != "" || e.Message.Content != "" {
		return e.Message
	}
	return e.IncomingMessage
}

type ParticipantsEvent struct {
	Type         string        `json:"type"`
	RoomID       string        `json:"roomId"`
	Participants []Participant `json:"participants"`
}
