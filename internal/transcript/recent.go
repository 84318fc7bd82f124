package transcript

import (
	"slices"
	"sync"
)

// DefaultRecentCapacity bounds the recent chats index.
const DefaultRecentCapacity = 10

// RecentChats is a newest-first list of chat titles, one per completed onboarding.
type RecentChats struct {
	mu     sync.RWMutex
	labels []string
	max    int
}

// NewRecentChats creates an index holding at most max labels.
func NewRecentChats(max int) *RecentChats {
	if max <= 0 {
		max = DefaultRecentCapacity
	}
	return &RecentChats{max: max}
}

// Add puts label first, dropping the oldest label beyond capacity.
func (r *RecentChats) Add(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.labels = slices.Insert(r.labels, 0, label)
	if len(r.labels) > r.max {
		r.labels = r.labels[:r.max]
	}
}

// Labels returns the labels newest first.
func (r *RecentChats) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.labels)
}
