// Package transcript holds the per-session message log, the bounded history
// window sent to the advisor as context, and the recent chats index.
package transcript

import (
	"slices"
	"time"

	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/google/uuid"
)

// Store is an ordered, append-only log of messages.
// It is not safe for concurrent use; the owning conversation serializes access.
type Store struct {
	messages []domain.Message
	now      func() time.Time
}

// NewStore creates an empty transcript.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Append adds a message and returns the stored copy.
func (s *Store) Append(author domain.Author, content string, options []string) domain.Message {
	msg := domain.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Author:    author,
		CreatedAt: s.now(),
		Options:   slices.Clone(options),
	}
	s.messages = append(s.messages, msg)
	return msg.Clone()
}

// Messages returns a copy of the transcript in append order.
func (s *Store) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// ActiveOptions returns the options of the last assistant message that carries any.
// Options rendered on earlier messages are inert.
func (s *Store) ActiveOptions() []string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Author == domain.AuthorAssistant && m.HasOptions() {
			return slices.Clone(m.Options)
		}
	}
	return nil
}

// IsActiveOption reports whether label belongs to the active option set.
func (s *Store) IsActiveOption(label string) bool {
	return slices.Contains(s.ActiveOptions(), label)
}

// HasUserTurn reports whether the student has acted at least once.
func (s *Store) HasUserTurn() bool {
	return slices.ContainsFunc(s.messages, domain.Message.IsUser)
}
