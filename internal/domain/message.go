// Package domain contains core domain types for the course advisor.
package domain

import (
	"slices"
	"time"
)

// Author identifies who produced a message.
type Author string

const (
	// AuthorUser marks a message typed or clicked by the student.
	AuthorUser Author = "user"
	// AuthorAssistant marks a message produced by the advisor.
	AuthorAssistant Author = "assistant"
)

// Message is a single transcript entry. It is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Options   []string  `json:"options,omitempty"`
}

// IsUser reports whether the message was authored by the student.
func (m Message) IsUser() bool {
	return m.Author == AuthorUser
}

// HasOptions reports whether the message carries selectable options.
func (m Message) HasOptions() bool {
	return len(m.Options) > 0
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	m.Options = slices.Clone(m.Options)
	return m
}
