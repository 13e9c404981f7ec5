package domain

import "strings"

// TempIDPrefix marks client-generated placeholder identifiers assigned to
// optimistic messages before the server confirms a stable id.
const TempIDPrefix = "temp-"

// Display names resolved at reconciliation time.
const (
	SenderNameSelf      = "나"
	SenderNameAnonymous = "익명"
)

// Message is one reconciled chat message as held in the cache and delivered
// to subscribers.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	Content    string    `json:"content"`
	Timestamp  Timestamp `json:"timestamp"`

	// IsFromCurrentUser is derived by comparing SenderID to the active
	// session's user id. The server never transmits it.
	IsFromCurrentUser bool `json:"-"`
}

// IsTemporary reports whether the message still carries a client-generated
// placeholder id.
func (m Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Participant is a member of a chat room as last reported by the server.
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	LastActiveAt Timestamp `json:"lastActiveAt,omitzero"`
}

// SenderRef is the nested sender/user object some server payloads carry.
type SenderRef struct {
	ID       FlexID `json:"id"`
	Nickname string `json:"nickname"`
}

// IncomingMessage is the loose wire shape a message arrives in, from either
// the socket or the history endpoint. Field presence varies by path; the
// reconciler normalizes it into a Message.
type IncomingMessage struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"roomId"`
	SenderID       FlexID     `json:"senderId"`
	SenderNickname string     `json:"senderNickname,omitempty"`
	Sender         *SenderRef `json:"sender,omitempty"`
	User           *SenderRef `json:"user,omitempty"`
	Content        string     `json:"content"`
	Timestamp      Timestamp  `json:"timestamp"`
}
