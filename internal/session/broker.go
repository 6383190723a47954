// Package session publishes session-change events from the auth service to
// any number of read-only subscribers.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind names a session transition.
type Kind string

const (
	InitialSession Kind = "INITIAL_SESSION"
	SignedIn       Kind = "SIGNED_IN"
	SignedOut      Kind = "SIGNED_OUT"
	TokenRefreshed Kind = "TOKEN_REFRESHED"
)

// Event is a single session transition for one user. SessionID is the
// session that changed; for TokenRefreshed, NextSessionID replaces it.
type Event struct {
	Kind          Kind      `json:"event"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id,omitempty"`
	NextSessionID string    `json:"next_session_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	At            time.Time `json:"at"`
}

// Concerns reports whether ev applies to the session sessionID. Events
// without a session apply to every session of the user.
func (e Event) Concerns(sessionID string) bool {
	return e.SessionID == "" || e.SessionID == sessionID
}

// Authenticated reports whether the user holds a session after the event.
func (e Event) Authenticated() bool {
	return e.Kind != SignedOut && e.UserID != ""
}

// DefaultBuffer is the per-subscriber channel capacity used by Subscribe.
const DefaultBuffer = 16

type subscriber struct {
	userID string
	ch     chan Event
}

// Broker fans events out to subscribers. Publish never blocks: an event that
// does not fit a subscriber's buffer is dropped for that subscriber.
type Broker struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*subscriber
	closed  bool
	dropped atomic.Uint64
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers for events of userID, or of every user when userID is
// empty. The returned cancel func unregisters and closes the channel; it is
// safe to call more than once. Subscribing to a closed broker returns an
// already-closed channel.
func (b *Broker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, DefaultBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{userID: userID, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish delivers ev to every matching subscriber.
func (b *Broker) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.userID != "" && s.userID != ev.UserID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were dropped because a subscriber's
// buffer was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel and rejects new subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
