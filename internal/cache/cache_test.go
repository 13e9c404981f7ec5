package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormworry/dormclient/internal/domain"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		RoomID:    "room-1",
		SenderID:  sender,
		Content:   content,
		Timestamp: domain.NewTimestamp(at),
	}
}

func TestAppendKeepsChronologicalOrder(t *testing.T) {
	s := New(3 * time.Second)

	s.Append("room-1", msg("m2", "1", "second", base.Add(2*time.Second)))
	s.Append("room-1", msg("m1", "1", "first", base))
	s.Append("room-1", msg("m3", "1", "third", base.Add(4*time.Second)))

	got := s.Messages("room-1")
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "m3", got[2].ID)
	assert.Equal(t, "m3", s.NewestID("room-1"))
}

func TestContainsByStableID(t *testing.T) {
	s := New(3 * time.Second)
	s.Append("room-1", msg("m1", "1", "hi", base))

	assert.True(t, s.Contains("room-1", msg("m1", "9", "different", base.Add(time.Hour))))
	assert.False(t, s.Contains("room-1", msg("m2", "1", "hi", base)))
	assert.False(t, s.Contains("room-2", msg("m1", "1", "hi", base)))
}

func TestContainsByContentSenderAndWindow(t *testing.T) {
	s := New(3 * time.Second)
	s.Append("room-1", msg("m1", "42", "hi", base))

	// Same content and sender, 500ms apart: one logical send.
	assert.True(t, s.Contains("room-1", msg("m2", "42", "hi", base.Add(500*time.Millisecond))))

	// Outside the window it is a genuine repeat.
	assert.False(t, s.Contains("room-1", msg("m3", "42", "hi", base.Add(10*time.Second))))

	// Different sender or content never matches.
	assert.False(t, s.Contains("room-1", msg("m4", "43", "hi", base)))
	assert.False(t, s.Contains("room-1", msg("m5", "42", "hello", base)))
}

func TestUpsertOutcomes(t *testing.T) {
	s := New(3 * time.Second)
	tempID := domain.TempIDPrefix + "abc"

	_, outcome := s.Upsert("room-1", msg(tempID, "42", "mine", base))
	assert.Equal(t, OutcomeAppended, outcome)

	// The confirmation matches the echo by content+sender+window and takes
	// its slot.
	final, outcome := s.Upsert("room-1", msg("srv-1", "42", "mine", base.Add(300*time.Millisecond)))
	assert.Equal(t, OutcomeResolved, outcome)
	assert.Equal(t, "srv-1", final.ID)
	require.Equal(t, 1, s.Len("room-1"))

	// Redelivery of the confirmed message reports the existing entry.
	existing, outcome := s.Upsert("room-1", msg("srv-1", "42", "mine", base.Add(time.Second)))
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, "srv-1", existing.ID)
	assert.Equal(t, 1, s.Len("room-1"))
}

func TestResolveTemporaryKeepsPosition(t *testing.T) {
	s := New(3 * time.Second)
	tempID := domain.TempIDPrefix + "abc"

	s.Append("room-1", msg("m1", "1", "before", base))
	s.Append("room-1", msg(tempID, "42", "mine", base.Add(time.Second)))
	s.Append("room-1", msg("m3", "1", "after", base.Add(2*time.Second)))

	final := msg("srv-9", "42", "mine", base.Add(1500*time.Millisecond))
	require.True(t, s.ResolveTemporary("room-1", tempID, final))

	got := s.Messages("room-1")
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "srv-9", got[1].ID, "confirmation must keep the optimistic slot")
	assert.Equal(t, "m3", got[2].ID)
}

func TestResolveTemporaryMissing(t *testing.T) {
	s := New(3 * time.Second)
	assert.False(t, s.ResolveTemporary("room-1", domain.TempIDPrefix+"nope", msg("srv-1", "1", "x", base)))
}

func TestDrop(t *testing.T) {
	s := New(3 * time.Second)
	s.Append("room-1", msg("m1", "1", "hi", base))
	require.Equal(t, 1, s.Len("room-1"))

	s.Drop("room-1")
	assert.Equal(t, 0, s.Len("room-1"))
	assert.Equal(t, "", s.NewestID("room-1"))
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New(3 * time.Second)
	s.Append("room-1", msg("m1", "1", "hi", base))

	got := s.Messages("room-1")
	got[0].Content = "mutated"

	assert.Equal(t, "hi", s.Messages("room-1")[0].Content)
}
