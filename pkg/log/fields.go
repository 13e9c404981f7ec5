package log

const (
	// Chat
	FieldRoomID    = "room_id"
	FieldMessageID = "message_id"
	FieldEvent     = "event"
	FieldSource    = "source"

	// Actor
	FieldUserID = "user_id"

	// Transport
	FieldAttempt = "attempt"
	FieldURL     = "url"

	// HTTP
	FieldMethod = "method"
	FieldPath   = "path"
	FieldStatus = "status"

	FieldApp = "app"
)
