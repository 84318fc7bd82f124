package transcript

import (
	"sync"

	"github.com/ashureev/advisor-chat/internal/domain"
)

// DefaultHistoryCapacity is the number of turn summaries kept for context.
const DefaultHistoryCapacity = 30

// Window is a fixed-size ring of plain-text turn summaries.
// When full, pushing overwrites the oldest entry.
type Window struct {
	buf  []string
	size int
	head int // write position
	tail int // read position
	full bool
	mu   sync.RWMutex
}

// NewWindow creates a history window with the given capacity.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultHistoryCapacity
	}
	return &Window{
		buf:  make([]string, size),
		size: size,
	}
}

// Push appends an entry, evicting the oldest when the window is full.
func (w *Window) Push(entry string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.full {
		w.tail = (w.tail + 1) % w.size
	}
	w.buf[w.head] = entry
	w.head = (w.head + 1) % w.size
	if w.head == w.tail {
		w.full = true
	}
}

// Record summarizes a message into the window.
// Messages carrying options are not part of the history.
func (w *Window) Record(m domain.Message) bool {
	if m.HasOptions() {
		return false
	}
	w.Push(Summarize(m))
	return true
}

// Summarize renders a message the way it is sent to the advisor.
func Summarize(m domain.Message) string {
	if m.IsUser() {
		return "User: " + m.Content
	}
	return "Assistant: " + m.Content
}

// Entries returns the entries oldest first.
func (w *Window) Entries() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := w.lenLocked()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = w.buf[(w.tail+i)%w.size]
	}
	return out
}

// Last returns up to n of the most recent entries, oldest first.
func (w *Window) Last(n int) []string {
	entries := w.Entries()
	if n >= len(entries) {
		return entries
	}
	if n <= 0 {
		return nil
	}
	return entries[len(entries)-n:]
}

func (w *Window) lenLocked() int {
	switch {
	case w.full:
		return w.size
	case w.head >= w.tail:
		return w.head - w.tail
	default:
		return (w.size - w.tail) + w.head
	}
}

// Reset clears the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	clear(w.buf)
	w.head = 0
	w.tail = 0
	w.full = false
}
