package transcript

import (
	"fmt"
	"testing"

	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreActiveOptionsFollowLatestOptionMessage(t *testing.T) {
	s := NewStore()
	s.Append(domain.AuthorAssistant, "What year are you?", []string{"Freshman", "Senior"})
	require.True(t, s.IsActiveOption("Freshman"))

	s.Append(domain.AuthorUser, "Freshman", nil)
	s.Append(domain.AuthorAssistant, "What semester?", []string{"Fall 2025"})

	assert.Equal(t, []string{"Fall 2025"}, s.ActiveOptions())
	assert.False(t, s.IsActiveOption("Freshman"), "earlier option sets must be inert")

	s.Append(domain.AuthorAssistant, "plain", nil)
	assert.Equal(t, []string{"Fall 2025"}, s.ActiveOptions(), "messages without options do not clear the active set")
}

func TestStoreIgnoresUserOptions(t *testing.T) {
	s := NewStore()
	s.Append(domain.AuthorUser, "hi", []string{"x"})
	assert.Empty(t, s.ActiveOptions())
	assert.True(t, s.HasUserTurn())
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	opts := []string{"Yes", "No"}
	msg := s.Append(domain.AuthorAssistant, "confirm?", opts)
	opts[0] = "Maybe"
	msg.Options[1] = "Nope"

	got := s.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Yes", "No"}, got[0].Options)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := NewWindow(DefaultHistoryCapacity)
	for i := 0; i < 45; i++ {
		w.Push(fmt.Sprintf("entry-%d", i))
		assert.LessOrEqual(t, len(w.Entries()), 30)
	}

	entries := w.Entries()
	require.Len(t, entries, 30)
	assert.Equal(t, "entry-15", entries[0])
	assert.Equal(t, "entry-44", entries[29])
	assert.Equal(t, []string{"entry-42", "entry-43", "entry-44"}, w.Last(3))
}

func TestWindowRecordSkipsOptionMessages(t *testing.T) {
	w := NewWindow(4)
	assert.False(t, w.Record(domain.Message{Author: domain.AuthorAssistant, Content: "pick", Options: []string{"a"}}))
	assert.True(t, w.Record(domain.Message{Author: domain.AuthorUser, Content: "CS"}))
	assert.True(t, w.Record(domain.Message{Author: domain.AuthorAssistant, Content: "ok"}))

	assert.Equal(t, []string{"User: CS", "Assistant: ok"}, w.Entries())

	w.Reset()
	assert.Zero(t, len(w.Entries()))
	assert.Empty(t, w.Last(6))
}

func TestRecentChatsNewestFirstBounded(t *testing.T) {
	r := NewRecentChats(DefaultRecentCapacity)
	for i := 0; i < 12; i++ {
		r.Add(fmt.Sprintf("chat-%d", i))
	}

	labels := r.Labels()
	require.Len(t, labels, 10)
	assert.Equal(t, "chat-11", labels[0])
	assert.Equal(t, "chat-2", labels[9])
}
