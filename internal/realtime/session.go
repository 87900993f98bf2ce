package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned when a disconnected session is used again.
// Reconnecting clients get a fresh session.
var ErrSessionClosed = errors.New("session closed")

type State int

const (
	StateConnected State = iota
	StateSubscribed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Envelope is one queued outbound item: either a fan-out Event or a direct
// Reply to this session (ack, error, joined).
type Envelope struct {
	Event *Event
	Reply any
}

// Session is one live client connection.
//
// All state changes go through the Hub, which holds mu while it moves the
// session between thread channels. The outbound queue is bounded; a full
// queue means the client is too slow and the Hub drops it.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Handle string

	mu       sync.RWMutex
	state    State
	threadID uuid.UUID
	outbound chan Envelope
}

func newSession(userID uuid.UUID, handle string, buffer int) *Session {
	return &Session{
		ID:       uuid.New(),
		UserID:   userID,
		Handle:   handle,
		state:    StateConnected,
		outbound: make(chan Envelope, buffer),
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ThreadID returns the subscribed thread, if any.
func (s *Session) ThreadID() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadID, s.state == StateSubscribed
}

// SubscribedTo reports whether the session is subscribed to threadID right
// now. The writer checks this before sending a fan-out event, so a session
// that left after the event was queued does not see it.
func (s *Session) SubscribedTo(threadID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateSubscribed && s.threadID == threadID
}

// Outbound is drained by the connection's writer. It is closed when the
// session disconnects.
func (s *Session) Outbound() <-chan Envelope {
	return s.outbound
}

// Reply queues a direct frame for this session. It returns false when the
// session is closed or its queue is full.
func (s *Session) Reply(frame any) bool {
	return s.enqueue(Envelope{Reply: frame})
}

func (s *Session) enqueue(env Envelope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateDisconnected {
		return false
	}
	select {
	case s.outbound <- env:
		return true
	default:
		return false
	}
}
