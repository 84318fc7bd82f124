// Package session keeps the live conversations of every browser tab and
// retires the ones that have gone idle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Key identifies one tab of one anonymous user.
type Key struct {
	UserID string
	TabID  string
}

func (k Key) String() string {
	return k.UserID + ":" + k.TabID
}

// Factory builds the conversation for a key.
type Factory func(ctx context.Context, key Key) (*conversation.Conversation, error)

type entry struct {
	conv     *conversation.Conversation
	lastSeen time.Time
}

// Registry maps keys to live conversations.
type Registry struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	creating singleflight.Group
	factory  Factory
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, recorder *metrics.Recorder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[Key]*entry),
		factory: factory,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the conversation for key, if any.
func (r *Registry) Get(key Key) (*conversation.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.conv, true
}

// GetOrCreate returns the conversation for key, creating it on first use.
// Concurrent first calls for the same key share a single factory call, which
// runs without the registry lock and outlives any one caller's context.
func (r *Registry) GetOrCreate(ctx context.Context, key Key) (*conversation.Conversation, error) {
	if conv, ok := r.touch(key); ok {
		return conv, nil
	}

	ch := r.creating.DoChan(key.String(), func() (any, error) {
		if conv, ok := r.touch(key); ok {
			return conv, nil
		}
		conv, err := r.factory(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entries[key] = &entry{conv: conv, lastSeen: r.now()}
		n := len(r.entries)
		r.mu.Unlock()

		r.metrics.SetConversations(n)
		r.logger.Info("Conversation registered", "key", key.String(), "session_id", conv.SessionID())
		return conv, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*conversation.Conversation), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Touch marks key as active. It reports whether key exists.
func (r *Registry) Touch(key Key) bool {
	_, ok := r.touch(key)
	return ok
}

func (r *Registry) touch(key Key) (*conversation.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.conv, true
}

// Remove closes and forgets the conversation for key.
func (r *Registry) Remove(key Key) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.conv.Close()
	r.metrics.SetConversations(n)
	return true
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes conversations idle for longer than ttl and returns their keys.
// Idle time counts from the later of the last registry touch and the last turn.
func (r *Registry) Sweep(ttl time.Duration) []Key {
	now := r.now()

	r.mu.Lock()
	var expired []*entry
	var keys []Key
	for key, e := range r.entries {
		last := e.lastSeen
		if activity := e.conv.LastActivity(); activity.After(last) {
			last = activity
		}
		if now.Sub(last) > ttl {
			expired = append(expired, e)
			keys = append(keys, key)
			delete(r.entries, key)
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	for _, e := range expired {
		e.conv.Close()
	}
	if len(keys) > 0 {
		r.metrics.SetConversations(n)
	}
	return keys
}

// CloseAll closes every conversation.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[Key]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.conv.Close()
	}
	r.metrics.SetConversations(0)
}
