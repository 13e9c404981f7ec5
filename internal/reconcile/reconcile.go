package reconcile

import (
	"time"

	"github.com/dormworry/dormclient/internal/cache"
	"github.com/dormworry/dormclient/internal/domain"
	"github.com/dormworry/dormclient/pkg/log"
)

// Source tags where a message arrived from, for logging only. The policy
// treats both paths identically.
type Source string

const (
	SourcePush  Source = "push"
	SourcePoll  Source = "poll"
	SourceLocal Source = "local"
)

// Identity exposes the active user's id. Satisfied by *session.Session.
type Identity interface {
	CurrentUserID() string
}

// NotifyFunc is called after the cache changed for a room.
type NotifyFunc func(roomID string)

// Reconciler merges messages from the socket and the polling fallback into
// one deduplicated timeline per room. Its one property is idempotence:
// applying the same logical send any number of times, from any path,
// converges to a single cached entry.
type Reconciler struct {
	cache    *cache.Store
	identity Identity
	notify   NotifyFunc
}

func New(store *cache.Store, identity Identity, notify NotifyFunc) *Reconciler {
	if notify == nil {
		notify = func(string) {}
	}
	return &Reconciler{
		cache:    store,
		identity: identity,
		notify:   notify,
	}
}

// Apply runs one incoming message through the policy. It returns the
// canonical form of the message and whether the cache changed.
//
// The decision and the mutation happen inside one cache lock; the push
// path (transport read goroutine) and the poll path racing the same send
// still converge to a single entry.
func (r *Reconciler) Apply(roomID string, in domain.IncomingMessage, source Source) (domain.Message, bool) {
	msg := r.normalize(roomID, in)

	final, outcome := r.cache.Upsert(roomID, msg)
	switch outcome {
	case cache.OutcomeResolved:
		// An optimistic echo caught up with its server confirmation.
		log.L().Debug().
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, final.ID).
			Str(log.FieldSource, string(source)).
			Msg("temporary message resolved")
	case cache.OutcomeAppended:
		log.L().Debug().
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, final.ID).
			Str(log.FieldSource, string(source)).
			Msg("message appended")
	default:
		// Redelivery of a known send; dropped silently.
		return final, false
	}

	r.notify(roomID)
	return final, true
}

// ApplyBatch runs a fetched history batch through the policy, oldest
// first. Returns how many messages changed the cache.
func (r *Reconciler) ApplyBatch(roomID string, batch []domain.IncomingMessage, source Source) int {
	applied := 0
	for _, in := range batch {
		if _, changed := r.Apply(roomID, in, source); changed {
			applied++
		}
	}
	return applied
}

func (r *Reconciler) normalize(roomID string, in domain.IncomingMessage) domain.Message {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = domain.NewTimestamp(time.Now())
	}

	senderID := domain.NormalizeID(in.SenderID.String())
	if senderID == "" {
		if in.Sender != nil {
			senderID = domain.NormalizeID(in.Sender.ID.String())
		} else if in.User != nil {
			senderID = domain.NormalizeID(in.User.ID.String())
		}
	}

	self := domain.SameID(senderID, r.identity.CurrentUserID())

	msg := domain.Message{
		ID:                in.ID,
		RoomID:            roomID,
		SenderID:          senderID,
		SenderName:        resolveSenderName(in, self),
		Content:           in.Content,
		Timestamp:         domain.NewTimestamp(ts.Time),
		IsFromCurrentUser: self,
	}
	if msg.RoomID == "" {
		msg.RoomID = in.RoomID
	}
	return msg
}

// resolveSenderName picks a display name by priority: the current-user
// marker, the nickname delivered alongside the socket event, a nested
// sender/user object's nickname, and finally the anonymous marker.
func resolveSenderName(in domain.IncomingMessage, self bool) string {
	if self {
		return domain.SenderNameSelf
	}
	if in.SenderNickname != "" {
		return in.SenderNickname
	}
	if in.Sender != nil && in.Sender.Nickname != "" {
		return in.Sender.Nickname
	}
	if in.User != nil && in.User.Nickname != "" {
		return in.User.Nickname
	}
	return domain.SenderNameAnonymous
}
